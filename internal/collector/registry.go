package collector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownSource = errors.New("unknown source")

// SourceInfo 数据源元信息
type SourceInfo struct {
	ID      string
	Name    string
	BaseURL string
}

// Factory 根据共享参数构造一个 Fetcher
type Factory func(opts Options) Fetcher

type entry struct {
	info    SourceInfo
	factory Factory
}

// Registry 数据源 id（含别名）到构造函数的映射
type Registry struct {
	opts Options

	mu      sync.RWMutex
	entries map[string]entry
	aliases map[string]string
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:    opts,
		entries: make(map[string]entry),
		aliases: make(map[string]string),
	}
}

// NormalizeKey 小写并把空格替换为下划线，例如 "New York Times" -> "new_york_times"
func NormalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Register 注册数据源；重复注册时后者覆盖前者
func (r *Registry) Register(info SourceInfo, f Factory, aliases ...string) {
	id := NormalizeKey(info.ID)
	info.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = entry{info: info, factory: f}
	r.aliases[id] = id
	for _, a := range aliases {
		r.aliases[NormalizeKey(a)] = id
	}
}

// Resolve 返回名称（或别名）对应的规范 id
func (r *Registry) Resolve(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.aliases[NormalizeKey(name)]
	return id, ok
}

// Get 构造名称对应的 Fetcher
func (r *Registry) Get(name string) (Fetcher, error) {
	id, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	r.mu.RLock()
	e := r.entries[id]
	r.mu.RUnlock()
	return e.factory(r.opts), nil
}

// Available 返回已注册的规范 id，按字母排序
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sources 返回全部数据源元信息，按 id 排序
func (r *Registry) Sources() []SourceInfo {
	ids := r.Available()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SourceInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id].info)
	}
	return out
}
