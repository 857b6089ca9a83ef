package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"

	"rift-go/internal/model"
	"rift-go/internal/repository"
	"rift-go/pkg/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rift_retrievals_total",
	Help: "按 checksum 读取的次数（按结果与存储层）。",
}, []string{"outcome", "tier"})

// Download 是一次读取的结果。调用方必须关闭 Body。
type Download struct {
	Body        io.ReadCloser
	Checksum    string
	ContentType string
	FileName    string
	Size        int64
	Tier        model.Tier
}

// Chunks 以 bufSize 为单位惰性读取内容。序列只能遍历一次。
func (d *Download) Chunks(bufSize int) iter.Seq2[[]byte, error] {
	return repository.Chunks(d.Body, bufSize)
}

// RetrievalService 接口定义了按内容哈希读取的操作。
type RetrievalService interface {
	Retrieve(ctx context.Context, checksum string) (*Download, error)
}

type retrievalService struct {
	inline  repository.InlineRepository
	chunked repository.ChunkedRepository
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(inline repository.InlineRepository, chunked repository.ChunkedRepository) RetrievalService {
	return &retrievalService{inline: inline, chunked: chunked}
}

// Retrieve 先查内联层，再查分块层。分块内容直接以后端流返回，不做缓冲。
func (s *retrievalService) Retrieve(ctx context.Context, checksum string) (*Download, error) {
	dl, err := s.retrieve(ctx, checksum)
	switch {
	case err == nil:
		retrievalsTotal.WithLabelValues("found", string(dl.Tier)).Inc()
	default:
		retrievalsTotal.WithLabelValues(KindOf(err).String(), "none").Inc()
	}
	return dl, err
}

func (s *retrievalService) retrieve(ctx context.Context, checksum string) (*Download, error) {
	obj, err := s.inline.Get(ctx, checksum)
	if err == nil {
		return &Download{
			Body:        io.NopCloser(bytes.NewReader(obj.Data)),
			Checksum:    checksum,
			ContentType: obj.Record.ContentType,
			FileName:    obj.Record.OriginalName,
			Size:        obj.Record.Size,
			Tier:        model.TierInline,
		}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		log.Errorf("[Retrieve] 查询内联存储失败, sha256: %s, error: %v", checksum, err)
		return nil, newError(KindStorageFailure, "failed to read inline store", err)
	}

	records, err := s.chunked.FindByChecksum(ctx, checksum)
	if err != nil {
		log.Errorf("[Retrieve] 查询分块存储失败, sha256: %s, error: %v", checksum, err)
		return nil, newError(KindStorageFailure, "failed to read chunked store", err)
	}
	if len(records) == 0 {
		return nil, newError(KindNotFound, "file not found", nil)
	}

	rec := records[0]
	stream, err := s.chunked.OpenDownload(ctx, rec.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, "file not found", err)
		}
		log.Errorf("[Retrieve] 打开分块对象失败, fileId: %s, error: %v", rec.ID, err)
		return nil, newError(KindStorageFailure, "failed to open chunked object", err)
	}
	return &Download{
		Body:        stream,
		Checksum:    checksum,
		ContentType: rec.ContentType,
		FileName:    rec.OriginalName,
		Size:        rec.Size,
		Tier:        model.TierChunked,
	}, nil
}
