// Package app 按配置组装各组件，供 cmd/api 与 cmd/newsctl 共用。
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/config"
	"github.com/LJTian/NewsDesk/internal/filestore"
	"github.com/LJTian/NewsDesk/internal/logger"
	"github.com/LJTian/NewsDesk/internal/news"
	"github.com/LJTian/NewsDesk/internal/processor"
	"github.com/LJTian/NewsDesk/internal/storage"
)

type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Store  *storage.Store
	Files  filestore.Store
	News   *news.Service
	// StaticRoot 本地存储时的根目录，S3 时为空
	StaticRoot string
}

// NewLogger 按配置创建根 logger
func NewLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, cfg.NewsCacheTTL, log)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	files, root, err := NewFileStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	fetcher := collector.NewPreviewFetcher(
		&http.Client{Timeout: cfg.FetchTimeout},
		log,
		collector.WithUserAgent(cfg.FetchUserAgent),
	)
	svc := news.NewService(store, files, fetcher, processor.NewImageProcessor(), news.Config{
		RetentionLimit: cfg.RetentionLimit,
		ThumbWidth:     cfg.ThumbWidth,
		ThumbHeight:    cfg.ThumbHeight,
	}, log)

	return &App{
		Config:     cfg,
		Log:        log,
		Store:      store,
		Files:      files,
		News:       svc,
		StaticRoot: root,
	}, nil
}

// NewFileStore 根据 STORAGE_DRIVER 选择本地目录或 S3；第二个返回值为本地根目录
func NewFileStore(ctx context.Context, cfg *config.Config) (filestore.Store, string, error) {
	switch cfg.StorageDriver {
	case "", "disk", "local", "public":
		d, err := filestore.NewDisk(cfg.StorageRoot, cfg.StorageURL)
		if err != nil {
			return nil, "", fmt.Errorf("init disk storage: %w", err)
		}
		return d, d.Root(), nil
	case "s3":
		s, err := filestore.NewS3(ctx, filestore.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("init s3 storage: %w", err)
		}
		return s, "", nil
	default:
		return nil, "", fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
