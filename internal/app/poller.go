package app

// poller.go 周期刷新各实例的连接状态，作为状态缓存的后台数据源。
import (
	"context"
	"sync"
	"time"
)

type Poller struct {
	interval  time.Duration
	refresher *Refresher
	instances []*Instance

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPoller(interval time.Duration, refresher *Refresher, instances []*Instance) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	p := &Poller{
		interval:  interval,
		refresher: refresher,
		instances: instances,
		stopCh:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Poller) Close() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.refreshAll()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Poller) refreshAll() {
	for _, ins := range p.instances {
		ctx, cancel := context.WithTimeout(context.Background(), p.interval)
		// 失败已在 Refresher 内记录日志；周期轮询不中断后续实例。
		_, _ = p.refresher.RefreshConnection(ctx, ins)
		cancel()
	}
}
