package collector

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// FetchPreviewImageURL 请求文章页并返回 og:image 的绝对地址
func (f *PreviewFetcher) FetchPreviewImageURL(ctx context.Context, articleURL string) (string, bool) {
	log := f.log.With().Str("url", articleURL).Logger()
	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("article fetch cancelled")
		return "", false
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.MaxBodySize(f.maxPageBytes),
	)
	c.SetClient(f.pageClient)

	var found string
	c.OnHTML("html", func(e *colly.HTMLElement) {
		if found != "" {
			return
		}
		if raw := PreviewImageURL(e.DOM); raw != "" {
			found = e.Request.AbsoluteURL(raw)
		}
	})

	if err := c.Visit(articleURL); err != nil {
		log.Warn().Err(err).Msg("article page unreachable")
		return "", false
	}
	if found == "" {
		log.Warn().Msg("og:image tag missing")
		return "", false
	}

	log.Debug().Str("image_url", found).Msg("og:image found")
	return found, true
}

// PreviewImageURL 返回文档中第一个非空的 og:image，未找到时为空
func PreviewImageURL(doc *goquery.Selection) string {
	var out string
	doc.Find(`meta[property="og:image"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("content"); ok {
			out = strings.TrimSpace(v)
		}
		return out == ""
	})
	return out
}
