package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	// AppURL 对外访问地址，用于生成分页链接与本地存储的图片 URL
	AppURL string

	PostgresDSN  string
	RedisAddr    string
	NewsCacheTTL time.Duration

	// 存储驱动：disk（本地 public 目录）或 s3（兼容 S3 的对象存储）
	StorageDriver string
	StorageRoot   string
	StorageURL    string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	RetentionLimit int
	ThumbWidth     int
	ThumbHeight    int

	FetchTimeout   time.Duration
	FetchUserAgent string

	// 为空时不启用定时补图
	BackfillCron string

	// 后台管理接口的 Basic Auth，未配置则不启用
	AdminBasicUser string
	AdminBasicPass string

	FrontendOrigins []string

	LogLevel  string
	LogPretty bool
}

func Load() *Config {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warn: load .env: %v", err)
	}

	appURL := strings.TrimRight(getEnv("APP_URL", "http://localhost:9000"), "/")

	cfg := &Config{
		AppPort:      getEnv("APP_PORT", "9000"),
		AppURL:       appURL,
		PostgresDSN:  getEnv("POSTGRES_DSN", "host=localhost user=newsdesk password=newsdesk dbname=newsdesk port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		NewsCacheTTL: getEnvDuration("NEWS_CACHE_TTL", 5*time.Minute),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "disk")),
		StorageRoot:   getEnv("STORAGE_ROOT", "./storage/public"),
		StorageURL:    strings.TrimRight(getEnv("STORAGE_URL", appURL+"/storage"), "/"),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "auto"),
		S3Bucket:    getEnv("S3_BUCKET", "newsdesk"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3PublicURL: strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),

		RetentionLimit: getEnvInt("NEWS_RETENTION_LIMIT", 10),
		ThumbWidth:     getEnvInt("THUMB_WIDTH", 400),
		ThumbHeight:    getEnvInt("THUMB_HEIGHT", 300),

		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchUserAgent: getEnv("FETCH_USER_AGENT", "NewsDeskBot/1.0"),

		BackfillCron: getEnv("IMAGE_BACKFILL_CRON", ""),

		AdminBasicUser: getEnv("ADMIN_BASIC_USER", ""),
		AdminBasicPass: getEnv("ADMIN_BASIC_PASS", ""),

		FrontendOrigins: splitList(getEnv("FRONTEND_ORIGINS", "http://localhost:5173")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvBool("LOG_PRETTY", false),
	}

	if cfg.RetentionLimit <= 0 {
		cfg.RetentionLimit = 10
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("warn: invalid int for %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		log.Printf("warn: invalid duration for %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// splitList 解析逗号分隔的配置项，忽略空白项
func splitList(raw string) []string {
	out := make([]string, 0, 4)
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
