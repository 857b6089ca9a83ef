// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rift-go/internal/config"
	"rift-go/internal/handler"
	"rift-go/internal/middleware"
	"rift-go/internal/repository"
	"rift-go/internal/service"
	"rift-go/pkg/codec"
	"rift-go/pkg/database"
	"rift-go/pkg/kafka"
	"rift-go/pkg/lock"
	"rift-go/pkg/log"
	"rift-go/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx := context.Background()

	// 3. 初始化数据库、对象存储和锁，任一失败直接退出
	db, err := database.OpenMySQL(cfg.Database.MySQL)
	if err != nil {
		log.Fatal("MySQL 初始化失败", err)
	}
	compression, err := codec.Parse(cfg.Inline.Compression)
	if err != nil {
		log.Fatal("内联压缩配置无效", err)
	}
	objects, err := newObjectClient(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("对象存储初始化失败", err)
	}
	locker, rdb, err := newLocker(ctx, cfg)
	if err != nil {
		log.Fatal("锁初始化失败", err)
	}
	publisher := kafka.NewPublisher(cfg.Kafka)

	// 4. 初始化 Repository 和 Service (依赖注入)
	inlineRepo := repository.NewInlineRepository(db, compression)
	chunkedRepo := repository.NewChunkedRepository(objects)
	uploadService := service.NewUploadService(inlineRepo, chunkedRepo, locker, publisher)
	retrievalService := service.NewRetrievalService(inlineRepo, chunkedRepo)

	// 5. 导入种子目录（已存在的内容会被去重跳过）
	seedCtx, cancelSeed := context.WithCancel(ctx)
	defer cancelSeed()
	if cfg.Seed.Dir != "" {
		go importSeedFiles(seedCtx, cfg.Seed.Dir, uploadService)
	}

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.MaxMultipartMemory = cfg.Server.MultipartMemory
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Fatal("trusted_proxies 配置无效", err)
	}
	r.Use(middleware.RequestLogger(), middleware.Metrics(), gin.Recovery())

	// 7. 注册路由
	checks := map[string]handler.HealthCheck{
		"mysql": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"storage": objects.Ping,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	registerRoutes(r, cfg, uploadService, retrievalService, checks)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")
	cancelSeed()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器，等待进行中的上传结束
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	if c, ok := publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := database.Close(db); err != nil {
		log.Errorf("关闭 MySQL 连接失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

func registerRoutes(r *gin.Engine, cfg config.Config, uploadService service.UploadService, retrievalService service.RetrievalService, checks map[string]handler.HealthCheck) {
	uploadHandler := handler.NewUploadHandler(uploadService)
	fileHandler := handler.NewFileHandler(retrievalService)

	upload := []gin.HandlerFunc{uploadHandler.Upload}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Max)
		upload = append([]gin.HandlerFunc{middleware.RateLimit(limiter)}, upload...)
	}
	r.POST("/upload", upload...)

	r.GET("/healthz", handler.NewHealthHandler(checks).Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/files", upload...)
		apiV1.GET("/files/:sha", fileHandler.Download)
	}
	r.GET("/:sha", fileHandler.Download)
}

// newObjectClient 按 storage.backend 创建分块存储后端。
func newObjectClient(ctx context.Context, cfg config.StorageConfig) (storage.ObjectClient, error) {
	switch cfg.Backend {
	case "minio", "":
		m, err := storage.NewMinIO(ctx, cfg.MinIO, cfg.BucketName, cfg.PartSize)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "s3":
		s, err := storage.NewS3(ctx, cfg.S3, cfg.BucketName)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		log.Warnf("使用内存对象存储，大文件在进程退出后丢失")
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
}

// newLocker 按 lock.backend 创建 checksum 锁。使用 Redis 时同时返回客户端以便健康检查和关闭。
func newLocker(ctx context.Context, cfg config.Config) (lock.Locker, *redis.Client, error) {
	switch cfg.Lock.Backend {
	case "redis", "":
		rdb, err := database.OpenRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return nil, nil, err
		}
		return lock.NewRedis(rdb, "rift:", cfg.Lock.TTL, cfg.Lock.Wait), rdb, nil
	case "memory":
		log.Info("使用进程内 checksum 锁，仅适用于单实例部署")
		return lock.NewMemory(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend: %q", cfg.Lock.Backend)
	}
}
