// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rift-go/internal/config"
	"rift-go/pkg/events"
	"rift-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// Producer 把存储事件写入配置的 topic，消息 key 为 checksum。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。Brokers 为逗号分隔的地址列表。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(splitBrokers(cfg.Brokers)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	log.Infof("Kafka 生产者初始化成功, brokers: %s, topic: %s", cfg.Brokers, cfg.Topic)
	return &Producer{writer: w}
}

// NewPublisher 根据配置返回事件发布器，未配置 brokers 时返回 events.Nop。
func NewPublisher(cfg config.KafkaConfig) events.Publisher {
	if len(splitBrokers(cfg.Brokers)) == 0 {
		log.Info("未配置 Kafka brokers，存储事件不会发布")
		return events.Nop{}
	}
	return NewProducer(cfg)
}

// PublishFileStored 发送一条 file.stored 事件。
func (p *Producer) PublishFileStored(ctx context.Context, evt events.FileStored) error {
	msg, err := newFileStoredMessage(evt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for %s: %w", evt.Type, evt.Checksum, err)
	}
	return nil
}

// Close 刷新缓冲中的消息并关闭连接。
func (p *Producer) Close() error {
	return p.writer.Close()
}

func newFileStoredMessage(evt events.FileStored) (kafka.Message, error) {
	if evt.Type == "" {
		evt.Type = events.TypeFileStored
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(evt.Checksum),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
		Time: evt.StoredAt,
	}, nil
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
