// Package notify 实现缓存变更通知的类型化订阅与扇出：
// 每次发布对每个订阅者至多投递一次，不持久化、不重放。
// 订阅者只应把通知当作重读状态缓存的提示，不应依赖其中的数据做权威判断。
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind 为事件类别。
type Kind string

const (
	// KindGroupsUpdated 表示群组数据集已被替换。
	KindGroupsUpdated Kind = "groups_updated"
	// KindConnectionUpdated 表示连接状态数据集已被替换。
	KindConnectionUpdated Kind = "connection_updated"
)

// Event 为一次缓存变更通知。
type Event struct {
	ID         string
	Kind       Kind
	Instance   string
	Count      int    // groups_updated：群组数量
	State      string // connection_updated：连接状态
	OccurredAt time.Time
}

// Subscription 为一次订阅的句柄。Cancel 后通道关闭，可安全重复调用。
type Subscription struct {
	C <-chan Event

	cancelOnce sync.Once
	cancel     func()
}

func (s *Subscription) Cancel() {
	s.cancelOnce.Do(s.cancel)
}

type subscriber struct {
	kind Kind
	ch   chan Event
}

// Notifier 管理订阅并扇出事件。可并发使用。
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]subscriber

	now func() time.Time
}

func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[int]subscriber),
		now:  time.Now,
	}
}

// Subscribe 注册一个指定类别的观察者，buffer 为通道容量（<=0 时取 1）。
func (n *Notifier) Subscribe(kind Kind, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = subscriber{kind: kind, ch: ch}
	n.mu.Unlock()

	return &Subscription{
		C: ch,
		cancel: func() {
			n.mu.Lock()
			if sub, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(sub.ch)
			}
			n.mu.Unlock()
		},
	}
}

// PublishGroupsUpdated 发布群组数据集变更通知。
func (n *Notifier) PublishGroupsUpdated(instance string, count int) {
	n.publish(Event{
		Kind:     KindGroupsUpdated,
		Instance: instance,
		Count:    count,
	})
}

// PublishConnectionUpdated 发布连接状态变更通知。
func (n *Notifier) PublishConnectionUpdated(instance string, state string) {
	n.publish(Event{
		Kind:     KindConnectionUpdated,
		Instance: instance,
		State:    state,
	})
}

// publish 非阻塞扇出：订阅者缓冲已满时丢弃本次投递（至多一次语义）。
func (n *Notifier) publish(ev Event) {
	ev.ID = uuid.NewString()
	ev.OccurredAt = n.now()

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subs {
		if sub.kind != ev.Kind {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("通知投递被丢弃（订阅者缓冲已满）",
				"kind", string(ev.Kind),
				"instance", ev.Instance,
				"event_id", ev.ID,
			)
		}
	}
}
