package main

import (
	"context"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"rift-go/internal/service"
	"rift-go/pkg/log"
)

// importSeedFiles 扫描目录下文件并通过标准上传流程导入（幂等，已存在的内容按去重跳过）。
func importSeedFiles(ctx context.Context, dir string, uploadSvc service.UploadService) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("importSeedFiles: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	var stored, skipped, failed int
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		switch kind := importSeedFile(ctx, path, uploadSvc); kind {
		case service.KindUnknown:
			stored++
		case service.KindDuplicateContent:
			skipped++
		default:
			failed++
		}
		return nil
	})
	if walkErr != nil {
		log.Warnf("importSeedFiles: 遍历目录发生错误: %v", walkErr)
	}
	log.Infof("importSeedFiles: 导入完成, 新增: %d, 已存在: %d, 失败: %d", stored, skipped, failed)
}

func importSeedFile(ctx context.Context, path string, uploadSvc service.UploadService) service.ErrorKind {
	f, err := os.Open(path)
	if err != nil {
		log.Warnf("importSeedFiles: 打开文件失败: %s, err=%v", path, err)
		return service.KindStorageFailure
	}
	defer f.Close()

	size := int64(-1)
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	res, err := uploadSvc.Upload(ctx, service.UploadRequest{
		Body:         f,
		Size:         size,
		OriginalName: filepath.Base(path),
		ContentType:  contentType,
	})
	kind := service.KindOf(err)
	switch {
	case err == nil:
		log.Infof("importSeedFiles: 已导入: %s (sha256=%s)", path, res.Record.Checksum)
	case kind == service.KindDuplicateContent:
		log.Infof("importSeedFiles: 已存在，跳过: %s", path)
	default:
		log.Warnf("importSeedFiles: 导入失败: %s, err=%v", path, err)
		if kind == service.KindUnknown {
			kind = service.KindStorageFailure
		}
	}
	return kind
}
