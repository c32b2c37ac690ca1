// Package news 新闻条目的增删改、预览图流水线与数量保留策略。
package news

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/LJTian/NewsDesk/internal/filestore"
	"github.com/LJTian/NewsDesk/internal/metrics"
	"github.com/LJTian/NewsDesk/internal/processor"
	"github.com/LJTian/NewsDesk/internal/storage"
	"github.com/LJTian/NewsDesk/internal/validation"
)

// MaxUploadBytes 手动上传图片的大小上限（2048 KB）
const MaxUploadBytes = 2048 << 10

// Repository 持久化层，*storage.Store 实现了它
type Repository interface {
	Create(ctx context.Context, n *storage.NewsItem) error
	Get(ctx context.Context, id uint) (*storage.NewsItem, error)
	UpdateFields(ctx context.Context, n *storage.NewsItem) error
	SetImage(ctx context.Context, id uint, path string, meta map[string]any) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
	Oldest(ctx context.Context, limit int) ([]storage.NewsItem, error)
	MissingImages(ctx context.Context) ([]storage.NewsItem, error)
}

// Input 新增或编辑时提交的字段
type Input struct {
	Title            string  `json:"title" validate:"required,max=255"`
	ShortDescription string  `json:"short_description" validate:"required"`
	Link             string  `json:"link" validate:"required,http_url,max=255"`
	Upload           *Upload `json:"-" validate:"-"`
}

// Upload 管理员手动上传的图片
type Upload struct {
	Filename string
	Data     []byte
}

type Config struct {
	RetentionLimit int
	ThumbWidth     int
	ThumbHeight    int
}

type Service struct {
	repo      Repository
	files     filestore.Store
	pipeline  *Pipeline
	retention *Retention
	limit     int
	log       zerolog.Logger
}

func NewService(repo Repository, files filestore.Store, source PreviewSource, thumbs Thumbnailer, cfg Config, log zerolog.Logger) *Service {
	if cfg.RetentionLimit < 1 {
		cfg.RetentionLimit = DefaultRetentionLimit
	}
	return &Service{
		repo:      repo,
		files:     files,
		pipeline:  NewPipeline(source, thumbs, files, repo, cfg.ThumbWidth, cfg.ThumbHeight, log),
		retention: NewRetention(repo, files, log),
		limit:     cfg.RetentionLimit,
		log:       log.With().Str("component", "news").Logger(),
	}
}

func (s *Service) Get(ctx context.Context, id uint) (*storage.NewsItem, error) {
	return s.repo.Get(ctx, id)
}

// Validate 校验字段，上传图片时同时校验大小与格式；返回 *validation.Error 或 nil
func Validate(in Input) error {
	verr := validation.Struct(in, nil)
	if in.Upload != nil {
		if len(in.Upload.Data) > MaxUploadBytes {
			verr.Add("image", "The image field must not be greater than 2048 kilobytes.")
		} else if _, err := processor.DetectExt(in.Upload.Data); err != nil {
			verr.Add("image", "The image field must be an image.")
		}
	}
	return verr.OrNil()
}

// Create 新增新闻：可选保存上传图片 -> 写库 -> 抓取预览图 -> 执行保留策略
func (s *Service) Create(ctx context.Context, in Input) (*storage.NewsItem, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	item := &storage.NewsItem{
		Title:            in.Title,
		ShortDescription: in.ShortDescription,
		Link:             in.Link,
	}
	if in.Upload != nil {
		if p, ok := s.storeUpload(ctx, in.Upload); ok {
			item.Image = &p
		}
	}

	if err := s.repo.Create(ctx, item); err != nil {
		s.discardUpload(ctx, item.ImagePath())
		return nil, err
	}
	s.log.Info().Uint("news_id", item.ID).Str("link", item.Link).Msg("news created")

	// 新建时视为链接未变化，只有还没有图片时才会抓取
	s.pipeline.MaybeRefetchImage(ctx, item, item.Link, item.ImagePath())

	if _, err := s.retention.EnforceLimit(ctx, s.limit); err != nil {
		s.log.Error().Err(err).Msg("enforce retention limit failed")
	}
	return item, nil
}

// Update 编辑新闻：链接变化或仍无图片时重新抓取预览图
func (s *Service) Update(ctx context.Context, id uint, in Input) (*storage.NewsItem, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	item := *before
	item.Title = in.Title
	item.ShortDescription = in.ShortDescription
	item.Link = in.Link

	uploaded := ""
	if in.Upload != nil {
		if p, ok := s.storeUpload(ctx, in.Upload); ok {
			uploaded = p
			item.Image = &uploaded
			item.ImageMeta = nil
		}
	}

	if err := s.repo.UpdateFields(ctx, &item); err != nil {
		s.discardUpload(ctx, uploaded)
		return nil, err
	}
	if old := before.ImagePath(); uploaded != "" && old != "" && old != uploaded {
		removeImage(ctx, s.files, before, s.log)
	}
	s.log.Info().Uint("news_id", item.ID).Str("link", item.Link).Msg("news updated")

	s.pipeline.MaybeRefetchImage(ctx, &item, before.Link, item.ImagePath())
	return &item, nil
}

// Delete 先删图片文件再删记录；图片删除失败不影响记录删除
func (s *Service) Delete(ctx context.Context, id uint) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	removeImage(ctx, s.files, item, s.log)
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Uint("news_id", id).Msg("news deleted")
	return nil
}

// EnforceLimit 按配置的条数执行一次保留策略
func (s *Service) EnforceLimit(ctx context.Context) (int, error) {
	return s.retention.EnforceLimit(ctx, s.limit)
}

// BackfillImages 为有链接但没有图片的记录补抓预览图，返回成功条数
func (s *Service) BackfillImages(ctx context.Context) (int, error) {
	items, err := s.repo.MissingImages(ctx)
	if err != nil {
		return 0, fmt.Errorf("backfill: %w", err)
	}
	fetched := 0
	for i := range items {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}
		item := &items[i]
		if _, ok := s.pipeline.MaybeRefetchImage(ctx, item, item.Link, ""); ok {
			fetched++
		}
	}
	if len(items) > 0 {
		s.log.Info().Int("candidates", len(items)).Int("fetched", fetched).Msg("image backfill finished")
	}
	return fetched, nil
}

func (s *Service) storeUpload(ctx context.Context, up *Upload) (string, bool) {
	ext, err := processor.DetectExt(up.Data)
	if err != nil {
		return "", false
	}
	p := processor.NewImagePath(ext)
	if err := s.files.Put(ctx, p, up.Data, processor.ContentTypeForExt(ext)); err != nil {
		s.log.Error().Err(err).Str("filename", up.Filename).Msg("store uploaded image failed")
		metrics.RecordStorageError("put")
		return "", false
	}
	return p, true
}

func (s *Service) discardUpload(ctx context.Context, p string) {
	if p == "" {
		return
	}
	if _, err := filestore.DeleteIfExists(ctx, s.files, p); err != nil {
		s.log.Warn().Err(err).Str("path", p).Msg("discard uploaded image failed")
	}
}

// IsNotFound 记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
