package news

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/filestore"
	"github.com/LJTian/NewsDesk/internal/metrics"
	"github.com/LJTian/NewsDesk/internal/processor"
	"github.com/LJTian/NewsDesk/internal/storage"
)

// PreviewSource 根据文章链接取回预览图原始内容
type PreviewSource interface {
	FetchPreviewImage(ctx context.Context, articleURL string) (*collector.Download, bool)
}

// Thumbnailer 把原始图片处理成缩略图
type Thumbnailer interface {
	Process(data []byte, opts processor.Options) (*processor.Result, error)
}

// Pipeline 预览图流水线：抓取 og:image -> 缩放 -> 写入存储 -> 回写记录
type Pipeline struct {
	source PreviewSource
	thumbs Thumbnailer
	files  filestore.Store
	repo   Repository
	width  int
	height int
	log    zerolog.Logger
}

func NewPipeline(source PreviewSource, thumbs Thumbnailer, files filestore.Store, repo Repository, width, height int, log zerolog.Logger) *Pipeline {
	if width <= 0 {
		width = processor.DefaultWidth
	}
	if height <= 0 {
		height = processor.DefaultHeight
	}
	return &Pipeline{
		source: source,
		thumbs: thumbs,
		files:  files,
		repo:   repo,
		width:  width,
		height: height,
		log:    log.With().Str("component", "image_pipeline").Logger(),
	}
}

// ShouldRefetch 链接变化，或者有链接但还没有图片时需要重新抓取
func ShouldRefetch(link, previousLink, currentImage string) bool {
	if link != previousLink {
		return true
	}
	return strings.TrimSpace(link) != "" && currentImage == ""
}

// MaybeRefetchImage 在需要时为 item 重新抓取预览图。
// 返回新的图片路径以及 item 是否持有抓取到的图片；任何失败都只记录日志，不向上返回错误。
func (p *Pipeline) MaybeRefetchImage(ctx context.Context, item *storage.NewsItem, previousLink, previousImage string) (string, bool) {
	if !ShouldRefetch(item.Link, previousLink, item.ImagePath()) {
		return "", false
	}
	log := p.log.With().Uint("news_id", item.ID).Str("link", item.Link).Logger()
	// Service 的校验保证链接非空，这里拦住直接调用 Pipeline 时清空链接的情况
	if strings.TrimSpace(item.Link) == "" {
		log.Debug().Msg("link cleared, nothing to fetch")
		return "", false
	}

	start := time.Now()
	observe := func(result string) {
		metrics.RecordImageFetch(result, time.Since(start).Seconds())
	}

	dl, ok := p.source.FetchPreviewImage(ctx, item.Link)
	if !ok {
		observe(metrics.ResultNoPreview)
		return "", false
	}

	thumb, err := p.thumbs.Process(dl.Data, processor.Options{
		Width:       p.width,
		Height:      p.height,
		SourceURL:   dl.URL,
		ContentType: dl.ContentType,
	})
	if err != nil {
		log.Warn().Err(err).Str("image_url", dl.URL).Msg("preview image could not be processed")
		observe(metrics.ResultDecode)
		return "", false
	}

	newPath := processor.NewImagePath(thumb.Ext)
	if err := p.files.Put(ctx, newPath, thumb.Data, thumb.ContentType); err != nil {
		log.Error().Err(err).Str("path", newPath).Msg("store preview image failed")
		metrics.RecordStorageError("put")
		observe(metrics.ResultStorage)
		return "", false
	}

	// 新旧路径相同说明文件已被覆盖，记录无需变更
	if newPath == previousImage {
		observe(metrics.ResultUnchanged)
		return newPath, true
	}

	if newPath != item.ImagePath() {
		meta := map[string]any{
			"source_url":   dl.URL,
			"content_type": thumb.ContentType,
			"width":        thumb.Width,
			"height":       thumb.Height,
		}
		if err := p.repo.SetImage(ctx, item.ID, newPath, meta); err != nil {
			log.Error().Err(err).Str("path", newPath).Msg("persist preview image path failed")
			// 记录没更新成功，新文件没有引用，尽量清掉
			if _, derr := filestore.DeleteIfExists(ctx, p.files, newPath); derr != nil {
				metrics.RecordStorageError("delete")
			}
			observe(metrics.ResultStorage)
			return "", false
		}
		item.Image = &newPath
		item.ImageMeta = meta
	}

	if previousImage != "" {
		if _, err := filestore.DeleteIfExists(ctx, p.files, previousImage); err != nil {
			log.Error().Err(err).Str("path", previousImage).Msg("delete replaced preview image failed")
			metrics.RecordStorageError("delete")
		}
	}

	log.Info().Str("path", newPath).Str("image_url", dl.URL).
		Int("width", thumb.Width).Int("height", thumb.Height).
		Msg("preview image stored")
	observe(metrics.ResultStored)
	return newPath, true
}
