package repository

import (
	"context"
	"errors"
	"fmt"
	"rift-go/internal/model"
	"rift-go/pkg/codec"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InlineObject 是内联层读取结果：记录加完整内容。
type InlineObject struct {
	Record *model.FileRecord
	Data   []byte
}

// InlineRepository 接口定义了小文件内联存储的数据持久化操作。
// 它本身不做去重检查，只依赖 checksum 唯一索引拒绝重复写入。
type InlineRepository interface {
	Put(ctx context.Context, data []byte, meta model.FileMeta) (*model.FileRecord, error)
	Get(ctx context.Context, checksum string) (*InlineObject, error)
	FindByChecksum(ctx context.Context, checksum string) (*model.FileRecord, error)
	Count(ctx context.Context) (int64, error)
}

// inlineRepository 是 InlineRepository 接口的 GORM 实现。
type inlineRepository struct {
	db          *gorm.DB
	compression codec.Algorithm
}

// NewInlineRepository 创建一个新的 InlineRepository 实例。
// db 需要以 TranslateError: true 打开，以便识别唯一键冲突。
func NewInlineRepository(db *gorm.DB, compression codec.Algorithm) InlineRepository {
	return &inlineRepository{db: db, compression: compression}
}

// Put 把整个负载作为一行写入 inline_file。
func (r *inlineRepository) Put(ctx context.Context, data []byte, meta model.FileMeta) (*model.FileRecord, error) {
	stored, alg, err := codec.Compress(data, r.compression)
	if err != nil {
		return nil, fmt.Errorf("compress inline payload: %w", err)
	}

	row := &model.InlineFile{
		ID:           uuid.NewString(),
		Checksum:     meta.Checksum,
		OriginalName: meta.OriginalName,
		ContentType:  meta.ContentType,
		Size:         int64(len(data)),
		Compression:  string(alg),
		Data:         stored,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, meta.Checksum)
		}
		return nil, err
	}
	return row.Record(), nil
}

// Get 根据 checksum 精确查找，返回解压后的内容。
func (r *inlineRepository) Get(ctx context.Context, checksum string) (*InlineObject, error) {
	var row model.InlineFile
	err := r.db.WithContext(ctx).Where("checksum = ?", checksum).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	data, err := codec.Decompress(row.Data, codec.Algorithm(row.Compression), row.Size)
	if err != nil {
		return nil, fmt.Errorf("inline record %s: %w", row.ID, err)
	}
	return &InlineObject{Record: row.Record(), Data: data}, nil
}

// FindByChecksum 只查询元数据，不加载内容列。
func (r *inlineRepository) FindByChecksum(ctx context.Context, checksum string) (*model.FileRecord, error) {
	var row model.InlineFile
	err := r.db.WithContext(ctx).
		Omit("data").
		Where("checksum = ?", checksum).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.Record(), nil
}

// Count 返回内联记录总数。
func (r *inlineRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.InlineFile{}).Count(&n).Error
	return n, err
}
