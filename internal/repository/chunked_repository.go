package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"rift-go/internal/model"
	"rift-go/pkg/log"
	"rift-go/pkg/storage"

	"github.com/google/uuid"
)

// defaultChunkSize 是 Chunks 未指定缓冲大小时使用的块大小。
const defaultChunkSize = 64 << 10

// chunkedPrefix 是分块层对象在存储桶中的 key 前缀，对象 key 为 blobs/<id>。
const chunkedPrefix = "blobs/"

// 对象用户元数据中的 key。
const (
	metaChecksum     = "checksum"
	metaOriginalName = "original-name"
	metaContentType  = "content-type"
	metaSize         = "size"
)

// ChunkedRepository 接口定义了大文件分块存储的操作。
// 上传与下载均为流式，单次操作的内存占用与对象大小无关。
type ChunkedRepository interface {
	// OpenUpload 返回一个顺序写入句柄，调用方写完后必须调用 Close 或 Abort。
	OpenUpload(ctx context.Context, meta model.FileMeta) (*UploadHandle, error)
	// FindByChecksum 扫描对象元数据，返回 checksum 匹配的记录。
	FindByChecksum(ctx context.Context, checksum string) ([]model.FileRecord, error)
	// OpenDownload 打开对象的流式读取器。
	OpenDownload(ctx context.Context, id string) (*DownloadStream, error)
}

type chunkedRepository struct {
	client storage.ObjectClient
}

// NewChunkedRepository 创建一个新的 ChunkedRepository 实例。
func NewChunkedRepository(client storage.ObjectClient) ChunkedRepository {
	return &chunkedRepository{client: client}
}

// UploadResult 是一次分块上传的终态：要么 Record 非空，要么 Err 非空。
type UploadResult struct {
	Record *model.FileRecord
	Err    error
}

// UploadHandle 是一次分块上传的写入端。写入经由 io.Pipe 直接交给后端，
// 后端读得慢时 Write 会阻塞，数据不会在内存中堆积。
type UploadHandle struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	result UploadResult
}

// Write 把数据顺序写入对象。后端失败后返回其错误。
func (h *UploadHandle) Write(p []byte) (int, error) {
	return h.pw.Write(p)
}

// Close 结束写入并等待后端提交，返回唯一的终态结果。可重复调用。
func (h *UploadHandle) Close() UploadResult {
	h.once.Do(func() { _ = h.pw.Close() })
	<-h.done
	return h.result
}

// Abort 中止上传，后端不会留下可见对象。cause 为 nil 时使用 context.Canceled。
func (h *UploadHandle) Abort(cause error) UploadResult {
	if cause == nil {
		cause = context.Canceled
	}
	h.once.Do(func() {
		_ = h.pw.CloseWithError(cause)
		h.cancel()
	})
	<-h.done
	return h.result
}

// OpenUpload 启动一个后台 PutObject，从管道读取调用方写入的数据。
func (r *chunkedRepository) OpenUpload(ctx context.Context, meta model.FileMeta) (*UploadHandle, error) {
	if meta.Checksum == "" {
		return nil, errors.New("chunked upload requires a checksum")
	}

	id := uuid.NewString()
	key := chunkedPrefix + id
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	h := &UploadHandle{pw: pw, cancel: cancel, done: make(chan struct{})}

	opts := storage.PutOptions{
		ContentType: meta.ContentType,
		Metadata: map[string]string{
			metaChecksum:     meta.Checksum,
			metaOriginalName: url.QueryEscape(meta.OriginalName),
			metaContentType:  meta.ContentType,
			metaSize:         strconv.FormatInt(meta.Size, 10),
		},
	}

	go func() {
		defer close(h.done)
		defer cancel()

		err := r.client.PutObject(ctx, key, pr, meta.Size, opts)
		// 后端提前失败时让阻塞中的 Write 立刻返回
		_ = pr.CloseWithError(err)
		if err != nil {
			log.Errorf("[ChunkedRepository] 写入对象失败, key: %s, error: %v", key, err)
			h.result = UploadResult{Err: err}
			return
		}
		h.result = UploadResult{Record: &model.FileRecord{
			ID:           id,
			Checksum:     meta.Checksum,
			OriginalName: meta.OriginalName,
			ContentType:  meta.ContentType,
			Size:         meta.Size,
			Tier:         model.TierChunked,
			CreatedAt:    model.LocalTime(time.Now()),
		}}
	}()

	return h, nil
}

// FindByChecksum 扫描 blobs/ 前缀下所有对象的元数据。分块层只保存少量大对象，扫描的代价可以接受。
func (r *chunkedRepository) FindByChecksum(ctx context.Context, checksum string) ([]model.FileRecord, error) {
	var records []model.FileRecord
	scanned := 0
	for info, err := range r.client.ListObjects(ctx, chunkedPrefix) {
		if err != nil {
			return nil, fmt.Errorf("list chunked objects: %w", err)
		}
		scanned++
		if info.Metadata[metaChecksum] != checksum {
			continue
		}
		records = append(records, recordFromObject(info))
	}
	log.Debugf("[ChunkedRepository] 元数据扫描完成, checksum: %s, 扫描: %d, 命中: %d", checksum, scanned, len(records))
	return records, nil
}

// DownloadStream 是分块对象的只读流，内容直接来自后端，不做缓冲。
type DownloadStream struct {
	io.ReadCloser
}

// Chunks 以 bufSize 为单位惰性读取剩余内容，见 Chunks。
func (d *DownloadStream) Chunks(bufSize int) iter.Seq2[[]byte, error] {
	return Chunks(d, bufSize)
}

// OpenDownload 返回对象内容的流，调用方负责关闭。
func (r *chunkedRepository) OpenDownload(ctx context.Context, id string) (*DownloadStream, error) {
	body, err := r.client.GetObject(ctx, chunkedPrefix+id)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &DownloadStream{ReadCloser: body}, nil
}

// Chunks 把 r 转换为有限、不可重放的块序列。每个块的底层缓冲在下一次迭代时复用，
// 调用方需要保留时必须自行拷贝。读到 io.EOF 正常结束，其它错误作为最后一项产出。
func Chunks(r io.Reader, bufSize int) iter.Seq2[[]byte, error] {
	if bufSize <= 0 {
		bufSize = defaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, bufSize)
		for {
			n, err := r.Read(buf)
			if n > 0 && !yield(buf[:n], nil) {
				return
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

func recordFromObject(info storage.ObjectInfo) model.FileRecord {
	name, err := url.QueryUnescape(info.Metadata[metaOriginalName])
	if err != nil {
		name = info.Metadata[metaOriginalName]
	}
	contentType := info.Metadata[metaContentType]
	if contentType == "" {
		contentType = info.ContentType
	}
	size, err := strconv.ParseInt(info.Metadata[metaSize], 10, 64)
	if err != nil {
		size = info.Size
	}
	return model.FileRecord{
		ID:           strings.TrimPrefix(info.Key, chunkedPrefix),
		Checksum:     info.Metadata[metaChecksum],
		OriginalName: name,
		ContentType:  contentType,
		Size:         size,
		Tier:         model.TierChunked,
		CreatedAt:    model.LocalTime(info.LastModified),
	}
}
