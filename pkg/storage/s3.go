package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"rift-go/internal/config"
	"rift-go/pkg/log"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 是基于 aws-sdk-go-v2 的 ObjectClient 实现，适用于 AWS S3 与 Cloudflare R2 等兼容服务。
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 使用静态凭证和自定义 endpoint 初始化 S3 客户端，并确保存储桶存在。
func NewS3(ctx context.Context, cfg config.S3Config, bucket string) (*S3, error) {
	awsCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Region:      cfg.Region,
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		// 上传体是不可 Seek 的管道，只在服务端要求时计算校验和
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	s := &S3{client: client, bucket: bucket}

	if err := s.Ping(ctx); err != nil {
		var notFound *s3types.NotFound
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("检查 S3 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucket)
		if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
			return nil, fmt.Errorf("创建 S3 存储桶失败: %w", err)
		}
	}
	log.Info("S3 客户端初始化成功")
	return s, nil
}

// PutObject 以未签名负载方式流式上传，r 不需要支持 Seek。
func (s *S3) PutObject(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: opts.Metadata,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	_, err := s.client.PutObject(ctx, input, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	return err
}

// GetObject 返回对象内容的流，调用方负责关闭。
func (s *S3) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateS3Error(err)
	}
	return out.Body, nil
}

// StatObject 通过 HeadObject 获取对象元数据。
func (s *S3) StatObject(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateS3Error(err)
	}
	info := &ObjectInfo{
		Key:      key,
		Size:     aws.ToInt64(out.ContentLength),
		Metadata: normalizeMetadata(out.Metadata),
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

// ListObjects 分页列举前缀下的对象。ListObjectsV2 不返回用户元数据，因此逐个 HeadObject。
func (s *S3) ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(ObjectInfo{}, err)
				return
			}
			for _, obj := range page.Contents {
				info, err := s.StatObject(ctx, aws.ToString(obj.Key))
				if errors.Is(err, ErrObjectNotFound) {
					continue
				}
				if err != nil {
					if !yield(ObjectInfo{}, err) {
						return
					}
					continue
				}
				if !yield(*info, nil) {
					return
				}
			}
		}
	}
}

// Ping 检查存储桶是否可访问。
func (s *S3) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func translateS3Error(err error) error {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
