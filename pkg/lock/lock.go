// Package lock 提供按 key 互斥的锁，用于把“去重检查 + 写入”串行化为一个原子步骤。
package lock

import (
	"context"
	"errors"
)

// ErrTimeout 表示在等待时间内没有拿到锁。
var ErrTimeout = errors.New("lock: timed out waiting for lock")

// Unlocker 释放一把已持有的锁，只能调用一次。
type Unlocker interface {
	Unlock()
}

// Locker 对任意字符串 key 提供互斥。Acquire 阻塞直到拿到锁、ctx 结束或超时。
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlocker, error)
}

// UnlockFunc 让普通函数满足 Unlocker。
type UnlockFunc func()

func (f UnlockFunc) Unlock() { f() }
