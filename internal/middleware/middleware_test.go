package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rift-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimitRejectsAfterMax(t *testing.T) {
	l := NewIPRateLimiter(5*time.Minute, 3)
	r := gin.New()
	r.POST("/upload", RateLimit(l), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	}
	w := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), RateLimitMessage)

	assert.Equal(t, http.StatusOK, do("10.0.0.2").Code, "其它 IP 不受影响")
}

func TestIPRateLimiterRefillsAndSweeps(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(time.Minute, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("a"), "每 window/max 补充一个令牌")
	assert.False(t, l.Allow("a"))

	now = now.Add(2 * time.Minute)
	assert.True(t, l.Allow("b"))
	l.mu.Lock()
	_, stillThere := l.visitors["a"]
	l.mu.Unlock()
	assert.False(t, stillThere, "长时间未出现的 IP 应被回收")
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/:sha", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	// 标签使用路由模板而不是具体路径
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/:sha", "404")))
	assert.Zero(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/abc", "404")))
}

func TestRequestLoggerPassesThroughBinaryBody(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	payload := make([]byte, 10<<10)
	r.GET("/blob", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/octet-stream", payload)
	})
	r.GET("/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blob", nil))
	assert.Equal(t, len(payload), w.Body.Len())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/json", nil))
	assert.JSONEq(t, `{"message":"ok"}`, w.Body.String())
}

func TestRequestLoggerLevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log.SetLogger(zap.New(core))
	t.Cleanup(func() { log.SetLogger(zap.NewNop()) })

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid file hash"})
	})
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	cases := []struct {
		path  string
		level zapcore.Level
	}{
		{"/ok", zapcore.InfoLevel},
		{"/bad", zapcore.WarnLevel},
		{"/missing", zapcore.WarnLevel},
		{"/boom", zapcore.ErrorLevel},
	}
	for _, tc := range cases {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, len(cases))
	for i, tc := range cases {
		assert.Equal(t, tc.level, entries[i].Level, tc.path)
		assert.Equal(t, tc.path, entries[i].ContextMap()["path"])
	}
	assert.Equal(t, `{"message":"Invalid file hash"}`, entries[1].ContextMap()["responseBody"])
}
