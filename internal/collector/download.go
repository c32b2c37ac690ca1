package collector

import (
	"context"
	"strings"
)

// DownloadImage 下载图片，非 2xx、空响应或超过大小限制都视为失败
func (f *PreviewFetcher) DownloadImage(ctx context.Context, imageURL string) (*Download, bool) {
	log := f.log.With().Str("image_url", imageURL).Logger()

	resp, err := f.rest.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		Get(imageURL)
	if err != nil {
		log.Error().Err(err).Msg("preview image unreachable")
		return nil, false
	}
	if !resp.IsSuccess() {
		log.Error().Int("status", resp.StatusCode()).Msg("preview image unreachable")
		return nil, false
	}

	body := resp.Body()
	if len(body) == 0 {
		log.Error().Msg("preview image is empty")
		return nil, false
	}
	if len(body) > f.maxImageBytes {
		log.Error().Int("bytes", len(body)).Int("limit", f.maxImageBytes).Msg("preview image too large")
		return nil, false
	}

	return &Download{
		URL:         imageURL,
		Data:        body,
		ContentType: strings.TrimSpace(resp.Header().Get("Content-Type")),
	}, true
}
