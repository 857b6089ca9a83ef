package lock

import (
	"context"
	"sync"
)

// Memory 是单进程内的按 key 互斥锁。每个 key 对应一个容量为 1 的 channel，
// 无人等待时条目会被回收。
type Memory struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

// NewMemory 创建进程内锁。
func NewMemory() *Memory {
	return &Memory{slots: make(map[string]*slot)}
}

// Acquire 获取 key 对应的锁。
func (m *Memory) Acquire(ctx context.Context, key string) (Unlocker, error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.waiters++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, s, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return UnlockFunc(func() {
		once.Do(func() { m.release(key, s, true) })
	}), nil
}

func (m *Memory) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	m.mu.Lock()
	s.waiters--
	if s.waiters == 0 {
		delete(m.slots, key)
	}
	m.mu.Unlock()
}
