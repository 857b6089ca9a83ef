// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"rift-go/internal/model"
	"rift-go/internal/repository"
	"rift-go/pkg/events"
	"rift-go/pkg/lock"
	"rift-go/pkg/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// copyBufferSize 是分块写入时每次从源读取的字节数。
	copyBufferSize = 256 << 10
	publishTimeout = 5 * time.Second
)

var errContentChanged = errors.New("upload source changed between hashing and storing")

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rift_uploads_total",
		Help: "上传请求数（按结果与存储层）。",
	}, []string{"outcome", "tier"})

	uploadBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rift_upload_bytes_total",
		Help: "新写入的内容字节数（按存储层）。",
	}, []string{"tier"})

	uploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rift_upload_duration_seconds",
		Help:    "从开始哈希到写入完成的耗时。",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"tier"})
)

// UploadRequest 描述一次上传。Body 会被读两遍：第一遍计算哈希，Seek 回开头后第二遍写入。
type UploadRequest struct {
	// Body 为 nil 表示请求中没有文件。
	Body io.ReadSeeker
	// Size 是客户端声明的大小，未知时为 -1。仅用于提前拒绝超大文件，路由以实际字节数为准。
	Size         int64
	OriginalName string
	ContentType  string
}

// UploadResult 是上传成功或命中去重时的结果。
type UploadResult struct {
	Record    *model.FileRecord
	Duplicate bool
}

// UploadService 接口定义了内容上传的业务操作。
type UploadService interface {
	// Upload 存储一份内容。命中去重时同时返回 Duplicate 结果和 KindDuplicateContent 错误。
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

type uploadService struct {
	inline    repository.InlineRepository
	chunked   repository.ChunkedRepository
	index     *DedupIndex
	locker    lock.Locker
	publisher events.Publisher
}

// NewUploadService 创建一个新的 UploadService 实例。publisher 为 nil 时不发布事件。
func NewUploadService(inline repository.InlineRepository, chunked repository.ChunkedRepository, locker lock.Locker, publisher events.Publisher) UploadService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &uploadService{
		inline:    inline,
		chunked:   chunked,
		index:     NewDedupIndex(inline, chunked),
		locker:    locker,
		publisher: publisher,
	}
}

func (s *uploadService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	start := time.Now()
	res, err := s.upload(ctx, req)

	tier := "none"
	if res != nil && res.Record != nil {
		tier = string(res.Record.Tier)
	}
	outcome := "stored"
	if err != nil {
		outcome = KindOf(err).String()
	}
	uploadsTotal.WithLabelValues(outcome, tier).Inc()
	if err == nil {
		uploadBytesTotal.WithLabelValues(tier).Add(float64(res.Record.Size))
		uploadDuration.WithLabelValues(tier).Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (s *uploadService) upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Body == nil {
		return nil, newError(KindNoPayload, "no file was uploaded", nil)
	}
	if req.Size > MaxPayloadSize {
		log.Warnf("[Upload] 声明大小超过上限, 文件名: %s, 大小: %d", req.OriginalName, req.Size)
		return nil, newError(KindPayloadTooLarge, "payload too large", nil)
	}

	// 多读一个字节即可判断是否超限，不必读完超大的输入
	checksum, size, err := HashReader(io.LimitReader(req.Body, MaxPayloadSize+1))
	if err != nil {
		log.Errorf("[Upload] 读取上传内容失败, 文件名: %s, error: %v", req.OriginalName, err)
		return nil, newError(KindStorageFailure, "failed to read upload", err)
	}
	decision := Route(size)
	if decision == DecisionReject {
		log.Warnf("[Upload] 文件超过大小上限, 文件名: %s", req.OriginalName)
		return nil, newError(KindPayloadTooLarge, "payload too large", nil)
	}
	log.Infof("[Upload] 哈希计算完成, 文件名: %s, 大小: %d, sha256: %s, 存储层: %s", req.OriginalName, size, checksum, decision)

	meta := model.FileMeta{
		Checksum:     checksum,
		OriginalName: req.OriginalName,
		ContentType:  req.ContentType,
		Size:         size,
	}
	res, err := s.storeExclusive(ctx, req.Body, meta, decision)
	if err != nil {
		return res, err
	}

	s.publishStored(ctx, res.Record)
	return res, nil
}

// storeExclusive 在 checksum 锁内完成“查重 + 写入”，保证同一内容只会产生一条记录。
func (s *uploadService) storeExclusive(ctx context.Context, body io.ReadSeeker, meta model.FileMeta, decision Decision) (*UploadResult, error) {
	unlock, err := s.locker.Acquire(ctx, meta.Checksum)
	if err != nil {
		log.Errorf("[Upload] 获取 checksum 锁失败, sha256: %s, error: %v", meta.Checksum, err)
		return nil, newError(KindStorageFailure, "failed to acquire checksum lock", err)
	}
	defer unlock.Unlock()

	existing, err := s.index.Lookup(ctx, meta.Checksum)
	if err != nil {
		log.Errorf("[Upload] 查询去重索引失败, sha256: %s, error: %v", meta.Checksum, err)
		return nil, newError(KindStorageFailure, "dedup lookup failed", err)
	}
	if existing != nil {
		log.Infof("[Upload] 内容已存在, sha256: %s, fileId: %s", meta.Checksum, existing.ID)
		return duplicateResult(existing)
	}

	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, newError(KindStorageFailure, "failed to rewind upload", err)
	}

	var rec *model.FileRecord
	switch decision {
	case DecisionInline:
		rec, err = s.storeInline(ctx, body, meta)
	case DecisionChunked:
		rec, err = s.storeChunked(ctx, body, meta)
	default:
		return nil, newError(KindPayloadTooLarge, "payload too large", nil)
	}

	if errors.Is(err, repository.ErrDuplicate) {
		// 其它进程在锁外抢先写入（例如使用进程内锁的多实例部署），以唯一索引为准
		winner, findErr := s.inline.FindByChecksum(ctx, meta.Checksum)
		if findErr != nil {
			return nil, newError(KindStorageFailure, "failed to load existing record", findErr)
		}
		log.Infof("[Upload] 唯一索引拒绝了重复写入, sha256: %s, fileId: %s", meta.Checksum, winner.ID)
		return duplicateResult(winner)
	}
	if err != nil {
		log.Errorf("[Upload] 写入存储失败, sha256: %s, 存储层: %s, error: %v", meta.Checksum, decision, err)
		return nil, newError(KindStorageFailure, "failed to store content", err)
	}

	log.Infof("[Upload] 文件存储成功, fileId: %s, sha256: %s, 存储层: %s", rec.ID, rec.Checksum, rec.Tier)
	return &UploadResult{Record: rec}, nil
}

func (s *uploadService) storeInline(ctx context.Context, body io.Reader, meta model.FileMeta) (*model.FileRecord, error) {
	data := make([]byte, meta.Size)
	if _, err := io.ReadFull(body, data); err != nil {
		return nil, fmt.Errorf("read inline payload: %w", err)
	}
	if HashBytes(data) != meta.Checksum {
		return nil, errContentChanged
	}
	return s.inline.Put(ctx, data, meta)
}

// storeChunked 边读边写，同时重新计算哈希；内容与第一遍不一致时中止上传。
func (s *uploadService) storeChunked(ctx context.Context, body io.Reader, meta model.FileMeta) (*model.FileRecord, error) {
	h, err := s.chunked.OpenUpload(ctx, meta)
	if err != nil {
		return nil, err
	}

	if err := copyVerified(h, io.LimitReader(body, meta.Size), meta.Size, meta.Checksum); err != nil {
		res := h.Abort(err)
		if res.Err != nil && !errors.Is(res.Err, err) {
			log.Warnf("[Upload] 中止分块上传时后端返回错误, sha256: %s, error: %v", meta.Checksum, res.Err)
		}
		return nil, err
	}

	res := h.Close()
	return res.Record, res.Err
}

// copyVerified 把 src 的前 size-1 个字节写入 dst，最后一个字节只在整体 SHA-256 等于 checksum 时才写入。
// MinIO、S3 按声明大小读满即提交，不等 EOF，所以校验必须发生在后端拿到最后一个字节之前。
func copyVerified(dst io.Writer, src io.Reader, size int64, checksum string) error {
	if size <= 0 {
		if HashBytes(nil) != checksum {
			return errContentChanged
		}
		return nil
	}

	hasher := sha256.New()
	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(io.MultiWriter(dst, hasher), io.LimitReader(src, size-1), buf)
	if err != nil {
		return err
	}
	if n < size-1 {
		return fmt.Errorf("%w: got %d of %d bytes", errContentChanged, n, size)
	}

	last := make([]byte, 1)
	if _, err := io.ReadFull(src, last); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: got %d of %d bytes", errContentChanged, n, size)
		}
		return err
	}
	hasher.Write(last)
	if hex.EncodeToString(hasher.Sum(nil)) != checksum {
		return errContentChanged
	}
	_, err = dst.Write(last)
	return err
}

func (s *uploadService) publishStored(ctx context.Context, rec *model.FileRecord) {
	// 请求结束不应打断已经开始的发布
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	evt := events.FileStored{
		Type:        events.TypeFileStored,
		FileID:      rec.ID,
		Checksum:    rec.Checksum,
		FileName:    rec.OriginalName,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		Tier:        string(rec.Tier),
		StoredAt:    time.Time(rec.CreatedAt),
	}
	if err := s.publisher.PublishFileStored(ctx, evt); err != nil {
		log.Warnf("[Upload] 发布存储事件失败, fileId: %s, error: %v", rec.ID, err)
	}
}

func duplicateResult(existing *model.FileRecord) (*UploadResult, error) {
	return &UploadResult{Record: existing, Duplicate: true}, newError(KindDuplicateContent, "file already exists", nil)
}
