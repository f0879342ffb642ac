// Package store 实现按实例持久化的状态缓存：一份带 schema 版本的 JSON 文档，
// 进程内只加载一次，每次变更整体落盘。
package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/zcw199604/evolution-bridge/internal/evolution"
)

// SchemaVersion 为持久化文档的 schema 版本。
const SchemaVersion = 1

const fileKeyPrefix = "evolution_api_data_"

// Document 为缓存数据集全集。时间戳为 RFC-3339 字符串，未设置时为 null。
type Document struct {
	Groups                []evolution.Group      `json:"groups"`
	GroupsCount           int                    `json:"groups_count"`
	GroupsLastUpdated     *string                `json:"groups_last_updated"`
	ConnectionState       string                 `json:"connection_state"`
	ConnectionLastUpdated *string                `json:"connection_last_updated"`
	InstanceInfo          map[string]interface{} `json:"instance_info"`
}

// envelope 为落盘结构：版本号 + 数据文档。
type envelope struct {
	Version int      `json:"version"`
	Data    Document `json:"data"`
}

func defaultDocument() Document {
	return Document{
		Groups:          []evolution.Group{},
		GroupsCount:     0,
		ConnectionState: "unknown",
		InstanceInfo:    map[string]interface{}{},
	}
}

// Store 管理单个实例的持久化文档。读改写全程持互斥锁，
// 并发 replace 不会交错出部分写入的文档。
type Store struct {
	path string

	mu     sync.Mutex
	loaded bool
	data   Document

	now func() time.Time
}

// New 创建 Store，文档路径为 <dataDir>/evolution_api_data_<instance>.json。
func New(dataDir, instance string) *Store {
	return &Store{
		path: filepath.Join(dataDir, fileKeyPrefix+instance+".json"),
		now:  time.Now,
	}
}

// Load 加载文档。首次调用读取磁盘（文件不存在则取默认值），之后返回内存副本。
func (s *Store) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.data, nil
	}

	b, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.data = defaultDocument()
		slog.Debug("状态缓存不存在，使用默认文档", "path", s.path)
	case err != nil:
		return Document{}, errors.Wrap(err, "读取状态缓存失败")
	default:
		var env envelope
		if err := json.Unmarshal(b, &env); err != nil {
			return Document{}, errors.Wrap(err, "解析状态缓存失败")
		}
		s.data = env.Data
		if s.data.Groups == nil {
			s.data.Groups = []evolution.Group{}
		}
		if s.data.InstanceInfo == nil {
			s.data.InstanceInfo = map[string]interface{}{}
		}
		if s.data.ConnectionState == "" {
			s.data.ConnectionState = "unknown"
		}
		slog.Debug("状态缓存加载成功",
			"path", s.path,
			"schema_version", env.Version,
			"groups_count", s.data.GroupsCount,
		)
	}

	s.loaded = true
	return s.data, nil
}

// Snapshot 返回当前文档的副本。
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Groups 返回已缓存的群组列表。
func (s *Store) Groups() []evolution.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]evolution.Group, len(s.data.Groups))
	copy(out, s.data.Groups)
	return out
}

// GroupsCount 返回已缓存的群组数量。
func (s *Store) GroupsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.GroupsCount
}

// ConnectionState 返回已缓存的连接状态，未设置时为 unknown。
func (s *Store) ConnectionState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.ConnectionState == "" {
		return "unknown"
	}
	return s.data.ConnectionState
}

// InstanceInfo 返回已缓存的实例信息。
func (s *Store) InstanceInfo() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.data.InstanceInfo))
	for k, v := range s.data.InstanceInfo {
		out[k] = v
	}
	return out
}

// SaveGroups 整体替换群组数据集并落盘。落盘失败时内存值保持已更新，错误上报调用方。
func (s *Store) SaveGroups(groups []evolution.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if groups == nil {
		groups = []evolution.Group{}
	}
	ts := s.now().Format(time.RFC3339)
	s.data.Groups = groups
	s.data.GroupsCount = len(groups)
	s.data.GroupsLastUpdated = &ts

	if err := s.flushLocked(); err != nil {
		return err
	}
	slog.Info("群组数据已写入状态缓存", "path", s.path, "groups_count", len(groups))
	return nil
}

// SaveConnectionState 替换连接状态数据集并落盘；info 非空时一并替换实例信息。
func (s *Store) SaveConnectionState(state string, info map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().Format(time.RFC3339)
	s.data.ConnectionState = state
	s.data.ConnectionLastUpdated = &ts
	if len(info) > 0 {
		s.data.InstanceInfo = info
	}

	return s.flushLocked()
}

// Reset 恢复全部数据集为默认值并落盘。
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = defaultDocument()
	if err := s.flushLocked(); err != nil {
		return err
	}
	slog.Info("状态缓存已重置为默认值", "path", s.path)
	return nil
}

// flushLocked 将整份文档序列化后原子落盘（写临时文件再改名），
// 进程崩溃时不会留下半写的文档。调用方须持锁。
func (s *Store) flushLocked() error {
	b, err := json.MarshalIndent(envelope{Version: SchemaVersion, Data: s.data}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "序列化状态缓存失败")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "创建状态缓存目录失败")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "创建状态缓存临时文件失败")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "写入状态缓存失败")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "关闭状态缓存临时文件失败")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "替换状态缓存文件失败")
	}
	return nil
}

func (s *Store) copyLocked() Document {
	out := s.data
	out.Groups = make([]evolution.Group, len(s.data.Groups))
	copy(out.Groups, s.data.Groups)
	out.InstanceInfo = make(map[string]interface{}, len(s.data.InstanceInfo))
	for k, v := range s.data.InstanceInfo {
		out.InstanceInfo[k] = v
	}
	return out
}
