package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageDir 新闻缩略图在公共存储区中的统一前缀
const ImageDir = "news_images"

const (
	DefaultWidth  = 400
	DefaultHeight = 300

	jpegQuality = 85
	webpQuality = 80
	maxExtLen   = 5
)

// ErrDecode 图片内容无法解码
var ErrDecode = errors.New("processor: decode image")

// encodable 可按扩展名重新编码的格式
var encodable = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Options 缩略图处理参数
type Options struct {
	Width  int
	Height int
	// SourceURL 图片原始地址，用于推断扩展名
	SourceURL string
	// ContentType 下载响应里声明的类型，扩展名推断失败时兜底
	ContentType string
}

// Result 写入存储前的缩略图
type Result struct {
	Data        []byte
	Ext         string
	ContentType string
	Width       int
	Height      int
}

// ImageProcessor 解码、按比例缩放到目标框内、再按扩展名重新编码
type ImageProcessor struct{}

func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{}
}

func (p *ImageProcessor) Process(data []byte, opts Options) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrDecode)
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), opts.Width, opts.Height)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	ext := ResolveExt(opts.SourceURL, opts.ContentType)
	encoded, err := encode(dst, ext)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:        encoded,
		Ext:         ext,
		ContentType: encodable[ext],
		Width:       w,
		Height:      h,
	}, nil
}

// FitWithin 计算保持宽高比、恰好放入 maxW×maxH 的尺寸（可放大也可缩小）
func FitWithin(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 1, 1
	}
	ratio := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	w := int(math.Round(float64(srcW) * ratio))
	h := int(math.Round(float64(srcH) * ratio))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w > maxW {
		w = maxW
	}
	if h > maxH {
		h = maxH
	}
	return w, h
}

// ResolveExt 优先取 URL 路径上的扩展名，不可用时按 Content-Type 映射，默认 jpg。
// URL 扩展名只接受可编码的格式（jpg/jpeg/png/gif/webp），
// 其他扩展名（如 svg、bmp）一律忽略，保证落盘扩展名与编码器一致。
func ResolveExt(sourceURL, contentType string) string {
	if ext := urlExt(sourceURL); ext != "" {
		return ext
	}
	return ExtForContentType(contentType)
}

// ExtForContentType Content-Type 到扩展名的映射
func ExtForContentType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mt {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

// ContentTypeForExt 扩展名对应的 Content-Type，未知时为空
func ContentTypeForExt(ext string) string {
	return encodable[strings.ToLower(ext)]
}

func urlExt(raw string) string {
	if raw == "" {
		return ""
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if ext == "" || len(ext) > maxExtLen {
		return ""
	}
	if _, ok := encodable[ext]; !ok {
		return ""
	}
	return ext
}

func encode(img image.Image, ext string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch ext {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "webp":
		err = webp.Encode(&buf, img, &webp.Options{Quality: webpQuality})
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("processor: encode %s: %w", ext, err)
	}
	return buf.Bytes(), nil
}

// NewImagePath 生成 news_images/<uuid>.<ext>，并发调用下也不会重复
func NewImagePath(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	return ImageDir + "/" + strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
}

// DetectExt 按内容识别图片格式，用于后台直接上传的图片
func DetectExt(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	switch format {
	case "jpeg":
		return "jpg", nil
	case "png", "gif", "webp":
		return format, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrDecode, format)
	}
}
