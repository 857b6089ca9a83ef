// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"strings"
	"time"

	"rift-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// maxLoggedBody 是日志中保留的响应体上限。
const maxLoggedBody = 2 << 10

// bodyLogWriter 用于捕获 JSON 响应体，文件内容不会被缓存。
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter，并在需要时保留前 maxLoggedBody 字节
func (w *bodyLogWriter) Write(b []byte) (int, error) {
	if isJSON(w.Header().Get("Content-Type")) {
		if room := maxLoggedBody - w.body.Len(); room > 0 {
			w.body.Write(b[:min(room, len(b))])
		}
	}
	return w.ResponseWriter.Write(b)
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

// RequestLogger 是一个 Gin 中间件，记录每个请求的状态码、耗时和来源。
// 请求体不做记录：上传接口是 multipart 文件流。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		startTime := time.Now()

		blw := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = blw

		// 处理请求
		c.Next()

		fields := []interface{}{
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestSize", c.Request.ContentLength,
			"responseSize", c.Writer.Size(),
		}
		if blw.body.Len() > 0 {
			fields = append(fields, "responseBody", blw.body.String())
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Errorw("HTTP Request Log", fields...)
		case status >= 400:
			log.Warnw("HTTP Request Log", fields...)
		default:
			log.Infow("HTTP Request Log", fields...)
		}
	}
}
