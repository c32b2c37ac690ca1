package filestore

import (
	"context"
	"sort"
	"sync"
)

// Memory 进程内存实现，供测试和本地调试替换真实存储
type Memory struct {
	mu      sync.Mutex
	baseURL string
	files   map[string]memoryObject
	ops     []string

	// 非 nil 时对应操作直接返回该错误
	PutErr    error
	DeleteErr error
	ExistsErr error
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: baseURL, files: make(map[string]memoryObject)}
}

func (m *Memory) Exists(_ context.Context, p string) (bool, error) {
	key, err := cleanKey(p)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "exists:"+key)
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	_, ok := m.files[key]
	return ok, nil
}

func (m *Memory) Put(_ context.Context, p string, data []byte, contentType string) error {
	key, err := cleanKey(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "put:"+key)
	if m.PutErr != nil {
		return m.PutErr
	}
	m.files[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *Memory) Delete(_ context.Context, p string) error {
	key, err := cleanKey(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "delete:"+key)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.files, key)
	return nil
}

func (m *Memory) URL(p string) string {
	key, err := cleanKey(p)
	if err != nil {
		return ""
	}
	return joinURL(m.baseURL, key)
}

// Get 返回已存储的内容
func (m *Memory) Get(p string) ([]byte, string, bool) {
	key, err := cleanKey(p)
	if err != nil {
		return nil, "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.files[key]
	return obj.data, obj.contentType, ok
}

// Keys 返回当前所有路径（已排序）
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.files))
	for k := range m.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ops 按调用顺序返回操作记录，例如 "put:news_images/a.jpg"
func (m *Memory) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ops...)
}

// ResetOps 清空操作记录
func (m *Memory) ResetOps() {
	m.mu.Lock()
	m.ops = nil
	m.mu.Unlock()
}
