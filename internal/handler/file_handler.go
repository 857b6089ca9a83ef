package handler

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"rift-go/internal/service"
	"rift-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// streamChunkSize 是下载时每次写给客户端的字节数。
const streamChunkSize = 64 << 10

// FileHandler 负责按内容哈希下载文件。
type FileHandler struct {
	retrievalService service.RetrievalService
}

// NewFileHandler 创建一个新的 FileHandler 实例。
func NewFileHandler(retrievalService service.RetrievalService) *FileHandler {
	return &FileHandler{retrievalService: retrievalService}
}

// Download 以附件形式流式返回 :sha 对应的内容。
func (h *FileHandler) Download(c *gin.Context) {
	sha := strings.ToLower(c.Param("sha"))
	if !service.IsChecksum(sha) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid file hash"})
		return
	}

	dl, err := h.retrievalService.Retrieve(c.Request.Context(), sha)
	if err != nil {
		if service.KindOf(err) == service.KindNotFound {
			c.JSON(http.StatusNotFound, gin.H{"message": "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to retrieve the file."})
		return
	}
	defer dl.Body.Close()

	name := dl.FileName
	if name == "" {
		name = sha
	}
	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Header("Content-Length", strconv.FormatInt(dl.Size, 10))
	c.Header("ETag", strconv.Quote(sha))
	c.Status(http.StatusOK)

	for chunk, err := range dl.Chunks(streamChunkSize) {
		if err != nil {
			// 响应头已发出，只能中断连接
			log.Errorf("[Download] 读取内容失败, sha256: %s, error: %v", sha, err)
			c.Abort()
			return
		}
		if _, err := c.Writer.Write(chunk); err != nil {
			log.Warnf("[Download] 客户端连接中断, sha256: %s, error: %v", sha, err)
			return
		}
	}
}
