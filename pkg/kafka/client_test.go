package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"rift-go/internal/config"
	"rift-go/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherWithoutBrokersIsNop(t *testing.T) {
	p := NewPublisher(config.KafkaConfig{Brokers: " , ", Topic: "t"})
	assert.IsType(t, events.Nop{}, p)

	p = NewPublisher(config.KafkaConfig{Brokers: "127.0.0.1:9092", Topic: "t"})
	prod, ok := p.(*Producer)
	require.True(t, ok)
	assert.NoError(t, prod.Close())
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, splitBrokers(""))
}

func TestNewFileStoredMessage(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := newFileStoredMessage(events.FileStored{
		FileID:   "id-1",
		Checksum: "abc",
		FileName: "a.txt",
		Size:     3,
		Tier:     "inline",
		StoredAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), msg.Key)
	assert.Equal(t, now, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, events.TypeFileStored, string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "file.stored", decoded["type"])
	assert.Equal(t, "id-1", decoded["file_id"])
	assert.Equal(t, "abc", decoded["sha256"])
}
