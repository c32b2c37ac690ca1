package collector

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	defaultUserAgent     = "NewsDeskBot/1.0"
	defaultTimeout       = 15 * time.Second
	defaultMaxPageBytes  = 2 << 20  // 2MB
	defaultMaxImageBytes = 10 << 20 // 10MB
)

// Download 下载到的预览图原始内容
type Download struct {
	URL         string
	Data        []byte
	ContentType string
}

// PreviewFetcher 抓取文章页面上的 og:image 并下载图片。
// 每次调用只请求一次，不做重试；失败时记录原因并返回 false，不向调用方抛错。
type PreviewFetcher struct {
	pageClient    *http.Client
	rest          *resty.Client
	userAgent     string
	maxPageBytes  int
	maxImageBytes int
	log           zerolog.Logger
}

type Option func(*PreviewFetcher)

func WithUserAgent(ua string) Option {
	return func(f *PreviewFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func WithMaxImageBytes(n int) Option {
	return func(f *PreviewFetcher) {
		if n > 0 {
			f.maxImageBytes = n
		}
	}
}

// NewPreviewFetcher client 为 nil 时使用带默认超时的客户端
func NewPreviewFetcher(client *http.Client, log zerolog.Logger, opts ...Option) *PreviewFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	// colly 与 resty 都会改写传入的 client（Jar、CheckRedirect），各用一份浅拷贝
	pageClient := *client
	imageClient := *client

	f := &PreviewFetcher{
		pageClient:    &pageClient,
		userAgent:     defaultUserAgent,
		maxPageBytes:  defaultMaxPageBytes,
		maxImageBytes: defaultMaxImageBytes,
		log:           log.With().Str("component", "collector").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.rest = resty.NewWithClient(&imageClient).
		SetRetryCount(0).
		SetHeader("User-Agent", f.userAgent)

	return f
}

// FetchPreviewImage 依次完成页面抓取、og:image 解析与图片下载
func (f *PreviewFetcher) FetchPreviewImage(ctx context.Context, articleURL string) (*Download, bool) {
	imageURL, ok := f.FetchPreviewImageURL(ctx, articleURL)
	if !ok {
		return nil, false
	}
	return f.DownloadImage(ctx, imageURL)
}
