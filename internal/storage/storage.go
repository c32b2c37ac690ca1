package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("storage: news item not found")

// NewsItem 首页新闻列表的一条记录
type NewsItem struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	Title            string `gorm:"size:255;not null" json:"title"`
	ShortDescription string `gorm:"type:text;not null" json:"short_description"`
	Link             string `gorm:"size:255;not null" json:"link"`
	// Image 公共存储区内的相对路径（含 news_images/ 前缀），未抓到图片时为空
	Image *string `gorm:"size:255" json:"image"`
	// ImageMeta 抓取来源信息：source_url、content_type、width、height
	ImageMeta datatypes.JSONMap `json:"image_meta,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NewsItem) TableName() string {
	return "news"
}

// ImagePath 返回图片路径，没有图片时为空串
func (n *NewsItem) ImagePath() string {
	if n == nil || n.Image == nil {
		return ""
	}
	return *n.Image
}

// Page 分页查询结果
type Page struct {
	Items []NewsItem `json:"items"`
	Total int64      `json:"total"`
}

type Store struct {
	DB    *gorm.DB
	Cache *PageCache
	log   zerolog.Logger
}

func NewStore(dsn, redisAddr string, cacheTTL time.Duration, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", redisAddr).Msg("redis ping failed, list cache may be unavailable")
		}
	}

	return NewStoreWithDB(db, NewPageCache(rdb, cacheTTL, log), log)
}

// NewStoreWithDB 使用已有连接创建 Store 并执行迁移，cache 可为 nil
func NewStoreWithDB(db *gorm.DB, cache *PageCache, log zerolog.Logger) (*Store, error) {
	if err := db.AutoMigrate(&NewsItem{}); err != nil {
		return nil, err
	}
	return &Store{DB: db, Cache: cache, log: log.With().Str("component", "storage").Logger()}, nil
}

// truncateRunes 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func normalize(n *NewsItem) {
	n.Title = strings.ToValidUTF8(truncateRunes(strings.TrimSpace(n.Title), 255), "�")
	n.ShortDescription = strings.ToValidUTF8(strings.TrimSpace(n.ShortDescription), "�")
	n.Link = truncateRunes(strings.TrimSpace(n.Link), 255)
	if n.Image != nil && strings.TrimSpace(*n.Image) == "" {
		n.Image = nil
	}
}

// Create 新增一条新闻
func (s *Store) Create(ctx context.Context, n *NewsItem) error {
	normalize(n)
	if err := s.DB.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create news: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// Get 按 ID 读取
func (s *Store) Get(ctx context.Context, id uint) (*NewsItem, error) {
	var n NewsItem
	err := s.DB.WithContext(ctx).First(&n, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get news %d: %w", id, err)
	}
	return &n, nil
}

// UpdateFields 更新文字字段与图片路径（图片为 nil 时写入 NULL）
func (s *Store) UpdateFields(ctx context.Context, n *NewsItem) error {
	normalize(n)
	res := s.DB.WithContext(ctx).Model(&NewsItem{ID: n.ID}).
		Select("title", "short_description", "link", "image", "image_meta", "updated_at").
		Updates(n)
	if res.Error != nil {
		return fmt.Errorf("update news %d: %w", n.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

// SetImage 只更新图片路径与来源信息
func (s *Store) SetImage(ctx context.Context, id uint, path string, meta map[string]any) error {
	var image any
	if path != "" {
		image = path
	}
	values := map[string]any{"image": image, "image_meta": datatypes.JSONMap(meta)}
	if meta == nil {
		values["image_meta"] = nil
	}
	res := s.DB.WithContext(ctx).Model(&NewsItem{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("set image for news %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

// Delete 删除记录
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&NewsItem{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete news %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

// Count 全部记录数
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&NewsItem{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count news: %w", err)
	}
	return n, nil
}

// Oldest 按创建时间升序返回最早的 limit 条
func (s *Store) Oldest(ctx context.Context, limit int) ([]NewsItem, error) {
	var list []NewsItem
	if limit <= 0 {
		return list, nil
	}
	err := s.DB.WithContext(ctx).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("select oldest news: %w", err)
	}
	return list, nil
}

// MissingImages 有链接但还没有图片的记录
func (s *Store) MissingImages(ctx context.Context) ([]NewsItem, error) {
	var list []NewsItem
	err := s.DB.WithContext(ctx).
		Where("link <> ''").
		Where("image IS NULL OR image = ''").
		Order("created_at DESC").Order("id DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("select news without image: %w", err)
	}
	return list, nil
}

// ListPage 按创建时间倒序分页，page 从 1 开始；优先读 Redis 缓存
func (s *Store) ListPage(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("list news: invalid page=%d limit=%d", page, limit)
	}
	if s.Cache == nil {
		return s.listPageDB(ctx, page, limit)
	}
	return s.Cache.GetOrLoad(ctx, page, limit, func(ctx context.Context) (*Page, error) {
		return s.listPageDB(ctx, page, limit)
	})
}

func (s *Store) listPageDB(ctx context.Context, page, limit int) (*Page, error) {
	var total int64
	db := s.DB.WithContext(ctx)
	if err := db.Model(&NewsItem{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count news: %w", err)
	}

	// 先按页数判断是否越界，避免 (page-1)*limit 溢出
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	if int64(page-1) >= pages {
		return &Page{Items: []NewsItem{}, Total: total}, nil
	}

	list := make([]NewsItem, 0, min(int64(limit), total))
	err := db.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	return &Page{Items: list, Total: total}, nil
}

func (s *Store) invalidate(ctx context.Context) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx)
	}
}
