package service

import (
	"context"
	"errors"

	"rift-go/internal/model"
	"rift-go/internal/repository"
)

// DedupIndex 回答“这段内容是否已经存过”。先查内联层，再查分块层。
type DedupIndex struct {
	inline  repository.InlineRepository
	chunked repository.ChunkedRepository
}

// NewDedupIndex 创建跨两个存储层的去重索引。
func NewDedupIndex(inline repository.InlineRepository, chunked repository.ChunkedRepository) *DedupIndex {
	return &DedupIndex{inline: inline, chunked: chunked}
}

// Lookup 返回已有记录；不存在时返回 (nil, nil)。存储错误原样返回。
func (d *DedupIndex) Lookup(ctx context.Context, checksum string) (*model.FileRecord, error) {
	rec, err := d.inline.FindByChecksum(ctx, checksum)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	records, err := d.chunked.FindByChecksum(ctx, checksum)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}
