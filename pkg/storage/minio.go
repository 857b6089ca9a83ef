package storage

import (
	"context"
	"fmt"
	"io"
	"iter"
	"rift-go/internal/config"
	"rift-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO 是基于 minio-go 的 ObjectClient 实现。
type MinIO struct {
	client   *minio.Client
	bucket   string
	partSize uint64
}

// NewMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewMinIO(ctx context.Context, cfg config.MinIOConfig, bucket string, partSize uint64) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucket)
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucket)
	} else {
		log.Infof("存储桶 '%s' 已存在", bucket)
	}

	return &MinIO{client: client, bucket: bucket, partSize: partSize}, nil
}

// PutObject 流式写入对象。已知 size 时 minio-go 按 partSize 分段上传，
// 内存占用与对象大小无关；r 出错时分段上传被中止，对象不会出现。
func (m *MinIO) PutObject(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
		PartSize:     m.partSize,
	})
	return err
}

// GetObject 返回对象的流式读取器。minio 的 GetObject 是惰性的，
// 这里先 Stat 一次以便把 NoSuchKey 转换为 ErrObjectNotFound。
func (m *MinIO) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinIOError(err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translateMinIOError(err)
	}
	return obj, nil
}

// StatObject 返回对象信息和用户元数据。
func (m *MinIO) StatObject(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, translateMinIOError(err)
	}
	return &ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		Metadata:     normalizeMetadata(info.UserMetadata),
		LastModified: info.LastModified,
	}, nil
}

// ListObjects 遍历前缀下的所有对象。MinIO 服务端支持在列举时返回用户元数据，
// 其它 S3 兼容服务不支持时退回逐个 Stat。
func (m *MinIO) ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		// 提前退出时取消 ctx，让 minio-go 的列举 goroutine 结束
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true, WithMetadata: true}
		for obj := range m.client.ListObjects(ctx, m.bucket, opts) {
			if obj.Err != nil {
				yield(ObjectInfo{}, translateMinIOError(obj.Err))
				return
			}
			info := ObjectInfo{
				Key:          obj.Key,
				Size:         obj.Size,
				ContentType:  obj.ContentType,
				Metadata:     normalizeMetadata(obj.UserMetadata),
				LastModified: obj.LastModified,
			}
			if len(info.Metadata) == 0 {
				stat, err := m.StatObject(ctx, obj.Key)
				if err != nil {
					if !yield(ObjectInfo{}, err) {
						return
					}
					continue
				}
				info = *stat
			}
			if !yield(info, nil) {
				return
			}
		}
	}
}

// Ping 检查存储桶是否可访问。
func (m *MinIO) Ping(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q does not exist", m.bucket)
	}
	return nil
}

func translateMinIOError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
