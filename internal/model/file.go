// Package model 定义了与数据库表对应的 Go 结构体以及领域模型。
package model

import "time"

// Tier 表示文件内容所在的存储层。
type Tier string

const (
	// TierInline 小文件，整个内容作为一行记录保存在数据库中。
	TierInline Tier = "inline"
	// TierChunked 大文件，以流式方式写入对象存储。
	TierChunked Tier = "chunked"
)

// FileMeta 是上传方声明的描述性元数据，不会与内容做校验。
type FileMeta struct {
	Checksum     string
	OriginalName string
	ContentType  string
	Size         int64
}

// FileRecord 是已存储内容的统一视图，与所在存储层无关。
// 创建后不可修改。
type FileRecord struct {
	ID           string    `json:"id"`
	Checksum     string    `json:"sha256"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	Tier         Tier      `json:"tier"`
	CreatedAt    LocalTime `json:"createdAt"`
}

// InlineFile 定义了 inline_file 表的 ORM 模型。
// checksum 上的唯一索引是内联层的去重约束。
type InlineFile struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Checksum     string    `gorm:"type:char(64);not null;uniqueIndex"`
	OriginalName string    `gorm:"type:varchar(255);not null"`
	ContentType  string    `gorm:"type:varchar(255);not null"`
	Size         int64     `gorm:"not null"`
	Compression  string    `gorm:"type:varchar(8);not null;default:'none'"`
	Data         []byte    `gorm:"type:longblob"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (InlineFile) TableName() string {
	return "inline_file"
}

// Record 把数据库行转换为领域记录（不含内容）。
func (f *InlineFile) Record() *FileRecord {
	return &FileRecord{
		ID:           f.ID,
		Checksum:     f.Checksum,
		OriginalName: f.OriginalName,
		ContentType:  f.ContentType,
		Size:         f.Size,
		Tier:         TierInline,
		CreatedAt:    LocalTime(f.CreatedAt),
	}
}
