package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// Memory 是进程内的 ObjectClient，用于本地开发（storage.backend=memory）和测试。
// 与真实后端一样，对象只有在 PutObject 完整读完数据后才可见。
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// NewMemory 创建一个空的内存对象存储。
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) PutObject(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if size >= 0 && int64(buf.Len()) != size {
		return fmt.Errorf("object %s: read %d bytes, expected %d", key, buf.Len(), size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		data: buf.Bytes(),
		info: ObjectInfo{
			Key:          key,
			Size:         int64(buf.Len()),
			ContentType:  opts.ContentType,
			Metadata:     normalizeMetadata(opts.Metadata),
			LastModified: time.Now(),
		},
	}
	return nil
}

func (m *Memory) GetObject(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *Memory) StatObject(_ context.Context, key string) (*ObjectInfo, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	info := obj.info
	info.Metadata = maps.Clone(obj.info.Metadata)
	return &info, nil
}

func (m *Memory) ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		m.mu.RLock()
		keys := slices.Sorted(maps.Keys(m.objects))
		m.mu.RUnlock()

		for _, key := range keys {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			if err := ctx.Err(); err != nil {
				yield(ObjectInfo{}, err)
				return
			}
			info, err := m.StatObject(ctx, key)
			if err != nil {
				continue
			}
			if !yield(*info, nil) {
				return
			}
		}
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len 返回对象数量。
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
