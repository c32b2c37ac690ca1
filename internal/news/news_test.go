package news

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/filestore"
	"github.com/LJTian/NewsDesk/internal/processor"
	"github.com/LJTian/NewsDesk/internal/storage"
	"github.com/LJTian/NewsDesk/internal/storage/storagetest"
	"github.com/LJTian/NewsDesk/internal/validation"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 7 {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x % 256), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeSource 记录调用并按配置返回固定图片
type fakeSource struct {
	mu    sync.Mutex
	calls []string
	data  []byte
	fail  bool
}

func (f *fakeSource) FetchPreviewImage(_ context.Context, articleURL string) (*collector.Download, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, articleURL)
	if f.fail {
		return nil, false
	}
	return &collector.Download{URL: "https://cdn.example.com/preview.png", Data: f.data, ContentType: "image/png"}, true
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fixture struct {
	svc   *Service
	store *storage.Store
	files *filestore.Memory
}

func newFixture(t *testing.T, source PreviewSource) *fixture {
	t.Helper()
	store := storagetest.NewStore(t)
	files := filestore.NewMemory("http://localhost/storage")
	svc := NewService(store, files, source, processor.NewImageProcessor(), Config{
		RetentionLimit: 10,
		ThumbWidth:     400,
		ThumbHeight:    300,
	}, zerolog.Nop())
	return &fixture{svc: svc, store: store, files: files}
}

func input(i int) Input {
	return Input{
		Title:            fmt.Sprintf("headline %d", i),
		ShortDescription: "summary",
		Link:             fmt.Sprintf("https://news.example.com/%d", i),
	}
}

func decodedSize(t *testing.T, files *filestore.Memory, p string) (int, int) {
	t.Helper()
	data, _, ok := files.Get(p)
	require.True(t, ok, "file %s not stored", p)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func newArticleOrigin(t *testing.T, img []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><meta property="og:image" content="/media/cover.png"></head><body></body></html>`))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>no preview</title></head><body></body></html>`))
	})
	mux.HandleFunc("/media/cover.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestShouldRefetch(t *testing.T) {
	cases := []struct {
		name                      string
		link, previousLink, image string
		want                      bool
	}{
		{"link changed", "https://b", "https://a", "news_images/x.png", true},
		{"same link without image", "https://a", "https://a", "", true},
		{"same link with image", "https://a", "https://a", "news_images/x.png", false},
		{"empty link without image", "", "", "", false},
		{"link cleared", "", "https://a", "news_images/x.png", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldRefetch(tc.link, tc.previousLink, tc.image))
		})
	}
}

func TestCreateFetchesPreviewFromArticle(t *testing.T) {
	srv := newArticleOrigin(t, pngOf(t, 800, 600))
	f := newFixture(t, collector.NewPreviewFetcher(srv.Client(), zerolog.Nop()))
	ctx := context.Background()

	in := input(1)
	in.Link = srv.URL + "/article"
	item, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	p := item.ImagePath()
	require.NotEmpty(t, p)
	assert.True(t, strings.HasPrefix(p, "news_images/"))
	assert.True(t, strings.HasSuffix(p, ".png"))

	w, h := decodedSize(t, f.files, p)
	assert.Equal(t, 400, w)
	assert.Equal(t, 300, h)

	got, err := f.store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got.ImagePath())
	assert.Equal(t, srv.URL+"/media/cover.png", got.ImageMeta["source_url"])
	assert.Equal(t, "image/png", got.ImageMeta["content_type"])
}

func TestCreateWithoutPreviewLeavesImageEmpty(t *testing.T) {
	srv := newArticleOrigin(t, pngOf(t, 10, 10))
	f := newFixture(t, collector.NewPreviewFetcher(srv.Client(), zerolog.Nop()))
	ctx := context.Background()

	for _, path := range []string{"/plain", "/missing"} {
		in := input(1)
		in.Link = srv.URL + path
		item, err := f.svc.Create(ctx, in)
		require.NoError(t, err, path)

		got, err := f.store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Image, path)
	}
	assert.Empty(t, f.files.Keys())
}

func TestCreateKeepsOnlyNewestTen(t *testing.T) {
	src := &fakeSource{data: pngOf(t, 40, 30)}
	f := newFixture(t, src)
	ctx := context.Background()

	var created []*storage.NewsItem
	for i := 0; i < 10; i++ {
		item, err := f.svc.Create(ctx, input(i))
		require.NoError(t, err)
		created = append(created, item)
	}
	n, err := f.store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 10, n)
	require.Len(t, f.files.Keys(), 10)

	eleventh, err := f.svc.Create(ctx, input(10))
	require.NoError(t, err)

	n, err = f.store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)

	_, err = f.store.Get(ctx, created[0].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, _, ok := f.files.Get(created[0].ImagePath())
	assert.False(t, ok, "image of pruned item must be deleted")

	_, err = f.store.Get(ctx, eleventh.ID)
	assert.NoError(t, err)
	assert.Len(t, f.files.Keys(), 10)
}

func TestEnforceLimitNoopWithinLimit(t *testing.T) {
	f := newFixture(t, &fakeSource{fail: true})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, input(i))
		require.NoError(t, err)
	}

	deleted, err := f.svc.EnforceLimit(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = NewRetention(f.store, f.files, zerolog.Nop()).EnforceLimit(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestUpdateLinkChangeReplacesImage(t *testing.T) {
	src := &fakeSource{data: pngOf(t, 80, 60)}
	f := newFixture(t, src)
	ctx := context.Background()

	item, err := f.svc.Create(ctx, input(1))
	require.NoError(t, err)
	oldPath := item.ImagePath()
	require.NotEmpty(t, oldPath)

	in := input(1)
	in.Link = "https://news.example.com/other"
	updated, err := f.svc.Update(ctx, item.ID, in)
	require.NoError(t, err)

	newPath := updated.ImagePath()
	require.NotEmpty(t, newPath)
	assert.NotEqual(t, oldPath, newPath)
	_, _, ok := f.files.Get(oldPath)
	assert.False(t, ok)
	_, _, ok = f.files.Get(newPath)
	assert.True(t, ok)

	got, err := f.store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, newPath, got.ImagePath())
	assert.Equal(t, in.Link, got.Link)
	assert.Equal(t, []string{input(1).Link, in.Link}, src.Calls())
}

func TestUpdateSameLinkWithImageSkipsFetch(t *testing.T) {
	src := &fakeSource{data: pngOf(t, 80, 60)}
	f := newFixture(t, src)
	ctx := context.Background()

	item, err := f.svc.Create(ctx, input(1))
	require.NoError(t, err)
	path := item.ImagePath()

	in := input(1)
	in.Title = "new headline"
	updated, err := f.svc.Update(ctx, item.ID, in)
	require.NoError(t, err)
	assert.Equal(t, path, updated.ImagePath())
	assert.Equal(t, "new headline", updated.Title)
	assert.Len(t, src.Calls(), 1)
}

func TestUpdateSameLinkWithoutImageRetries(t *testing.T) {
	src := &fakeSource{fail: true, data: pngOf(t, 80, 60)}
	f := newFixture(t, src)
	ctx := context.Background()

	item, err := f.svc.Create(ctx, input(1))
	require.NoError(t, err)
	require.Nil(t, item.Image)

	src.mu.Lock()
	src.fail = false
	src.mu.Unlock()

	updated, err := f.svc.Update(ctx, item.ID, input(1))
	require.NoError(t, err)
	assert.NotEmpty(t, updated.ImagePath())
	assert.Len(t, src.Calls(), 2)
}

func TestUpdateMissingItem(t *testing.T) {
	f := newFixture(t, &fakeSource{fail: true})
	_, err := f.svc.Update(context.Background(), 42, input(1))
	assert.True(t, IsNotFound(err))
}

func TestDeleteRemovesImage(t *testing.T) {
	f := newFixture(t, &fakeSource{data: pngOf(t, 20, 20)})
	ctx := context.Background()

	item, err := f.svc.Create(ctx, input(1))
	require.NoError(t, err)
	require.NotEmpty(t, item.ImagePath())

	require.NoError(t, f.svc.Delete(ctx, item.ID))
	assert.Empty(t, f.files.Keys())
	_, err = f.store.Get(ctx, item.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.True(t, IsNotFound(f.svc.Delete(ctx, item.ID)))
}

func TestDeleteWithoutImageMakesNoStorageCalls(t *testing.T) {
	f := newFixture(t, &fakeSource{fail: true})
	ctx := context.Background()

	item, err := f.svc.Create(ctx, input(1))
	require.NoError(t, err)
	f.files.ResetOps()

	require.NoError(t, f.svc.Delete(ctx, item.ID))
	assert.Empty(t, f.files.Ops())
}

func TestDeleteSurvivesStorageFailure(t *testing.T) {
	f := newFixture(t, &fakeSource{data: pngOf(t, 20, 20)})
	ctx := context.Background()

	item, err := f.svc.Create(ctx, input(1))
	require.NoError(t, err)
	f.files.DeleteErr = errors.New("bucket offline")

	require.NoError(t, f.svc.Delete(ctx, item.ID))
	_, err = f.store.Get(ctx, item.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPipelineStorageFailureKeepsRecord(t *testing.T) {
	f := newFixture(t, &fakeSource{data: pngOf(t, 20, 20)})
	f.files.PutErr = errors.New("disk full")

	item, err := f.svc.Create(context.Background(), input(1))
	require.NoError(t, err)
	assert.Nil(t, item.Image)
}

func TestPipelineUndecodableImage(t *testing.T) {
	f := newFixture(t, &fakeSource{data: []byte("<html>not an image</html>")})

	item, err := f.svc.Create(context.Background(), input(1))
	require.NoError(t, err)
	assert.Nil(t, item.Image)
	assert.Empty(t, f.files.Keys())
}

func TestPipelineClearedLinkSkipsFetch(t *testing.T) {
	src := &fakeSource{data: pngOf(t, 20, 20)}
	f := newFixture(t, src)
	p := NewPipeline(src, processor.NewImageProcessor(), f.files, f.store, 400, 300, zerolog.Nop())

	img := "news_images/old.png"
	item := &storage.NewsItem{ID: 7, Title: "headline", Image: &img}
	got, ok := p.MaybeRefetchImage(context.Background(), item, "https://news.example.com/old", img)
	assert.False(t, ok)
	assert.Empty(t, got)
	assert.Empty(t, src.Calls())
	assert.Empty(t, f.files.Ops())
	assert.Equal(t, img, item.ImagePath())
}

func TestValidate(t *testing.T) {
	err := Validate(Input{Title: strings.Repeat("x", 256), Link: "not a url"})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "short_description")
	assert.Contains(t, verr.Fields, "link")

	in := input(1)
	in.Upload = &Upload{Filename: "a.txt", Data: []byte("plain text")}
	require.ErrorAs(t, Validate(in), &verr)
	assert.Equal(t, []string{"The image field must be an image."}, verr.Fields["image"])

	in.Upload = &Upload{Filename: "big.png", Data: make([]byte, MaxUploadBytes+1)}
	require.ErrorAs(t, Validate(in), &verr)
	assert.Equal(t, []string{"The image field must not be greater than 2048 kilobytes."}, verr.Fields["image"])

	assert.NoError(t, Validate(input(1)))
}

func TestCreateRejectsInvalidInputWithoutWrites(t *testing.T) {
	f := newFixture(t, &fakeSource{data: pngOf(t, 20, 20)})
	in := input(1)
	in.Link = ""
	in.Upload = &Upload{Filename: "a.png", Data: pngOf(t, 5, 5)}

	_, err := f.svc.Create(context.Background(), in)
	require.Error(t, err)
	assert.Empty(t, f.files.Ops())
	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateWithUploadSkipsFetch(t *testing.T) {
	src := &fakeSource{data: pngOf(t, 20, 20)}
	f := newFixture(t, src)

	in := input(1)
	in.Upload = &Upload{Filename: "cover.png", Data: pngOf(t, 50, 50)}
	item, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	p := item.ImagePath()
	require.True(t, strings.HasPrefix(p, "news_images/"))
	w, h := decodedSize(t, f.files, p)
	assert.Equal(t, 50, w, "uploads are stored as-is")
	assert.Equal(t, 50, h)
	assert.Empty(t, src.Calls())
}

func TestUpdateUploadReplacesPreviousImage(t *testing.T) {
	f := newFixture(t, &fakeSource{data: pngOf(t, 20, 20)})
	ctx := context.Background()

	item, err := f.svc.Create(ctx, input(1))
	require.NoError(t, err)
	oldPath := item.ImagePath()
	require.NotEmpty(t, oldPath)

	in := input(1)
	in.Upload = &Upload{Filename: "new.png", Data: pngOf(t, 12, 12)}
	updated, err := f.svc.Update(ctx, item.ID, in)
	require.NoError(t, err)

	assert.NotEqual(t, oldPath, updated.ImagePath())
	assert.Equal(t, []string{updated.ImagePath()}, f.files.Keys())
}

func TestBackfillImages(t *testing.T) {
	src := &fakeSource{fail: true, data: pngOf(t, 20, 20)}
	f := newFixture(t, src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, input(i))
		require.NoError(t, err)
	}
	src.mu.Lock()
	src.fail = false
	src.mu.Unlock()

	fetched, err := f.svc.BackfillImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, fetched)
	assert.Len(t, f.files.Keys(), 3)

	missing, err := f.store.MissingImages(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)

	fetched, err = f.svc.BackfillImages(ctx)
	require.NoError(t, err)
	assert.Zero(t, fetched)
}
