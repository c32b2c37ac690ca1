package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/LJTian/NewsDesk/internal/filestore"
	"github.com/LJTian/NewsDesk/internal/logger"
	"github.com/LJTian/NewsDesk/internal/news"
	"github.com/LJTian/NewsDesk/internal/storage"
)

// Lister 分页读取新闻，*storage.Store 实现了它
type Lister interface {
	ListPage(ctx context.Context, page, limit int) (*storage.Page, error)
}

type Server struct {
	list    Lister
	news    *news.Service
	files   filestore.Store
	baseURL string
	log     zerolog.Logger
}

// NewServer baseURL 用于生成分页链接，例如 http://localhost:9000
func NewServer(list Lister, svc *news.Service, files filestore.Store, baseURL string, log zerolog.Logger) *Server {
	return &Server{
		list:    list,
		news:    svc,
		files:   files,
		baseURL: baseURL,
		log:     logger.Component(log, "api"),
	}
}

// RouterConfig 路由级别的可选项
type RouterConfig struct {
	FrontendOrigins []string
	// 后台管理接口的 Basic Auth，任一为空则不启用
	AdminUser string
	AdminPass string
	// 本地存储根目录，非空时在 /storage 下托管静态文件
	StorageRoot string
}

// NewRouter 组装 gin 引擎：中间件、公共接口、后台接口与指标
func NewRouter(cfg RouterConfig, s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(s.log))

	if len(cfg.FrontendOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.FrontendOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	var admin []gin.HandlerFunc
	if cfg.AdminUser != "" && cfg.AdminPass != "" {
		admin = append(admin, BasicAuth(cfg.AdminUser, cfg.AdminPass))
	}
	s.RegisterRoutes(r, admin...)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.StorageRoot != "" {
		r.Static("/storage", cfg.StorageRoot)
	}
	return r
}

func (s *Server) RegisterRoutes(r gin.IRouter, adminMiddleware ...gin.HandlerFunc) {
	r.GET("/health", s.health)
	r.GET("/news/:page/:limit", s.listNews)

	admin := r.Group("/admin/news", adminMiddleware...)
	{
		admin.POST("", s.createNews)
		admin.GET("/:id", s.getNews)
		admin.PUT("/:id", s.updateNews)
		admin.DELETE("/:id", s.deleteNews)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
