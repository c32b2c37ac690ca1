package news

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/LJTian/NewsDesk/internal/filestore"
	"github.com/LJTian/NewsDesk/internal/metrics"
	"github.com/LJTian/NewsDesk/internal/storage"
)

// DefaultRetentionLimit 首页保留的新闻条数
const DefaultRetentionLimit = 10

// Retention 只保留最新的 limit 条新闻，超出的按创建时间从旧到新删除
type Retention struct {
	repo  Repository
	files filestore.Store
	log   zerolog.Logger
}

func NewRetention(repo Repository, files filestore.Store, log zerolog.Logger) *Retention {
	return &Retention{repo: repo, files: files, log: log.With().Str("component", "retention").Logger()}
}

// EnforceLimit 删除多余的最旧记录及其图片，返回实际删除的条数。
// 单条删除失败只记录日志并继续处理下一条。
func (r *Retention) EnforceLimit(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = DefaultRetentionLimit
	}
	total, err := r.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("retention: %w", err)
	}
	excess := int(total) - limit
	if excess <= 0 {
		return 0, nil
	}

	victims, err := r.repo.Oldest(ctx, excess)
	if err != nil {
		return 0, fmt.Errorf("retention: %w", err)
	}

	deleted := 0
	for i := range victims {
		if err := ctx.Err(); err != nil {
			break
		}
		item := &victims[i]
		removeImage(ctx, r.files, item, r.log)
		if err := r.repo.Delete(ctx, item.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			r.log.Error().Err(err).Uint("news_id", item.ID).Msg("retention delete failed")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		r.log.Info().Int("deleted", deleted).Int("limit", limit).Msg("old news pruned")
		metrics.RecordRetention(deleted)
	}
	return deleted, nil
}

// removeImage 删除记录引用的图片文件，失败只记录日志
func removeImage(ctx context.Context, files filestore.Store, item *storage.NewsItem, log zerolog.Logger) {
	p := item.ImagePath()
	if p == "" {
		return
	}
	if _, err := filestore.DeleteIfExists(ctx, files, p); err != nil {
		log.Error().Err(err).Uint("news_id", item.ID).Str("path", p).Msg("delete news image failed")
		metrics.RecordStorageError("delete")
	}
}
