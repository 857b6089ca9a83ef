// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"rift-go/internal/service"
	"rift-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// multipartOverhead 是 multipart 边界和表单头允许占用的额外字节。
const multipartOverhead = 1 << 20

// 返回给客户端的提示文案。
const (
	msgUploaded      = "File uploaded successfully"
	msgAlreadyExists = "File already exists"
	msgTooLarge      = "File size greater than 128MB is not allowed."
	msgNoFile        = "No files were uploaded."
	msgUploadFailed  = "Failed to upload the file."
)

// UploadHandler 负责处理文件上传请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload 处理 multipart 表单中名为 file 的单个文件。
func (h *UploadHandler) Upload(c *gin.Context) {
	limit := service.MaxPayloadSize + multipartOverhead
	if c.Request.ContentLength > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": msgTooLarge})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": msgTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": msgNoFile})
		return
	}
	if fh.Size > service.MaxPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": msgTooLarge})
		return
	}

	file, err := fh.Open()
	if err != nil {
		log.Errorf("[Upload] 打开上传文件失败, 文件名: %s, error: %v", fh.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgUploadFailed})
		return
	}
	defer file.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	res, err := h.uploadService.Upload(c.Request.Context(), service.UploadRequest{
		Body:         file,
		Size:         fh.Size,
		OriginalName: fh.Filename,
		ContentType:  contentType,
	})
	switch service.KindOf(err) {
	case service.KindUnknown:
		if err != nil {
			log.Error("[Upload] 上传失败", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": msgUploadFailed})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": msgUploaded,
			"fileId":  res.Record.ID,
			"sha256":  res.Record.Checksum,
		})
	case service.KindDuplicateContent:
		body := gin.H{"message": msgAlreadyExists}
		if res != nil && res.Record != nil {
			body["fileId"] = res.Record.ID
			body["sha256"] = res.Record.Checksum
		}
		c.JSON(http.StatusConflict, body)
	case service.KindPayloadTooLarge:
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": msgTooLarge})
	case service.KindNoPayload:
		c.JSON(http.StatusBadRequest, gin.H{"message": msgNoFile})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgUploadFailed})
	}
}
