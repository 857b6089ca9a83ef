// Package storage 提供了与对象存储服务（MinIO、S3 兼容存储）交互的功能。
package storage

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"time"
)

// ErrObjectNotFound 表示对象不存在。
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo 描述一个对象。Metadata 为用户元数据，key 统一为小写且不带 x-amz-meta- 前缀。
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	Metadata     map[string]string
	LastModified time.Time
}

// PutOptions 是写入对象时附带的属性。
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectClient 是分块存储层所需的最小对象存储接口。
// PutObject 只有在完整读完 r 并成功提交后对象才可见；r 返回错误时对象不会出现。
type ObjectClient interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, key string) (*ObjectInfo, error)
	ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error]
	Ping(ctx context.Context) error
}

var (
	_ ObjectClient = (*MinIO)(nil)
	_ ObjectClient = (*S3)(nil)
	_ ObjectClient = (*Memory)(nil)
)

const userMetaPrefix = "x-amz-meta-"

// normalizeMetadata 统一不同后端返回的用户元数据 key 格式。
func normalizeMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.ToLower(k)
		k = strings.TrimPrefix(k, userMetaPrefix)
		out[k] = v
	}
	return out
}
