package service

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"rift-go/internal/model"
	"rift-go/internal/repository"
	"rift-go/pkg/codec"
	"rift-go/pkg/events"
	"rift-go/pkg/lock"
	"rift-go/pkg/storage"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishFileStored(ctx context.Context, evt events.FileStored) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

// countingClient 记录后端实际读写的字节数，用于验证分块层是流式的。
// commitAtSize 为 true 时像 minio-go 一样只读声明的 size 个字节就提交，不等待 EOF。
type countingClient struct {
	*storage.Memory
	commitAtSize bool
	maxPutRead   atomic.Int64
	getRead      atomic.Int64
}

type countingReader struct {
	r      io.Reader
	onRead func(n int)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.onRead(n)
	return n, err
}

type readCloser struct {
	io.Reader
	io.Closer
}

func (c *countingClient) PutObject(ctx context.Context, key string, r io.Reader, size int64, opts storage.PutOptions) error {
	cr := &countingReader{r: r, onRead: func(n int) {
		for {
			m := c.maxPutRead.Load()
			if int64(n) <= m || c.maxPutRead.CompareAndSwap(m, int64(n)) {
				return
			}
		}
	}}
	if c.commitAtSize && size >= 0 {
		return c.Memory.PutObject(ctx, key, io.LimitReader(cr, size), size, opts)
	}
	return c.Memory.PutObject(ctx, key, cr, size, opts)
}

func (c *countingClient) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := c.Memory.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	cr := &countingReader{r: body, onRead: func(n int) { c.getRead.Add(int64(n)) }}
	return readCloser{Reader: cr, Closer: body}, nil
}

type fixture struct {
	inline    repository.InlineRepository
	chunked   repository.ChunkedRepository
	objects   *countingClient
	publisher *mockPublisher
	upload    UploadService
	retrieval RetrievalService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.InlineFile{}))

	objects := &countingClient{Memory: storage.NewMemory()}
	f := &fixture{
		inline:    repository.NewInlineRepository(db, codec.Zstd),
		chunked:   repository.NewChunkedRepository(objects),
		objects:   objects,
		publisher: &mockPublisher{},
	}
	f.publisher.On("PublishFileStored", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.upload = NewUploadService(f.inline, f.chunked, lock.NewMemory(), f.publisher)
	f.retrieval = NewRetrievalService(f.inline, f.chunked)
	return f
}

// zeroReaderAt 产生任意长度的全零内容，不占用内存。
type zeroReaderAt struct{}

func (zeroReaderAt) ReadAt(p []byte, _ int64) (int, error) {
	clear(p)
	return len(p), nil
}

func zeros(n int64) *io.SectionReader {
	return io.NewSectionReader(zeroReaderAt{}, 0, n)
}

// patterned 生成不易压缩、按 seed 区分的内容。
func patterned(n int, seed byte) []byte {
	b := make([]byte, n)
	x := uint32(seed) + 1
	for i := range b {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		b[i] = byte(x)
	}
	return b
}

func runConcurrently(n int, fn func(i int)) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
}
