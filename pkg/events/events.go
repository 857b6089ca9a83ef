// Package events 定义了存储完成后发布到 Kafka 的消息结构。
package events

import (
	"context"
	"time"
)

// TypeFileStored 是新内容落盘后发布的事件类型。
const TypeFileStored = "file.stored"

// FileStored 表示一条新记录已创建。重复上传不会产生该事件。
type FileStored struct {
	Type        string    `json:"type"`
	FileID      string    `json:"file_id"`
	Checksum    string    `json:"sha256"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Tier        string    `json:"tier"`
	StoredAt    time.Time `json:"stored_at"`
}

// Publisher 发布存储事件。实现需要可并发调用。
type Publisher interface {
	PublishFileStored(ctx context.Context, evt FileStored) error
}

// Nop 丢弃所有事件，用于未配置 Kafka 的部署和测试。
type Nop struct{}

func (Nop) PublishFileStored(context.Context, FileStored) error { return nil }
