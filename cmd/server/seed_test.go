package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"rift-go/internal/model"
	"rift-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingUploader 按内容去重，记录每次调用。
type recordingUploader struct {
	mu    sync.Mutex
	seen  map[string]bool
	names []string
}

func (u *recordingUploader) Upload(_ context.Context, req service.UploadRequest) (*service.UploadResult, error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names = append(u.names, req.OriginalName)
	sum := service.HashBytes(data)
	rec := &model.FileRecord{ID: sum[:8], Checksum: sum, Size: int64(len(data))}
	if u.seen[sum] {
		return &service.UploadResult{Record: rec, Duplicate: true}, &service.Error{Kind: service.KindDuplicateContent}
	}
	u.seen[sum] = true
	return &service.UploadResult{Record: rec}, nil
}

func TestImportSeedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("alpha"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "c.json"), []byte("{}"), 0o600))

	u := &recordingUploader{seen: map[string]bool{}}
	importSeedFiles(context.Background(), dir, u)

	assert.ElementsMatch(t, []string{"a.txt", "b.txt", "c.json"}, u.names)
	assert.Len(t, u.seen, 2)
}

func TestImportSeedFilesMissingDir(t *testing.T) {
	u := &recordingUploader{seen: map[string]bool{}}
	importSeedFiles(context.Background(), filepath.Join(t.TempDir(), "nope"), u)
	assert.Empty(t, u.names)
}
