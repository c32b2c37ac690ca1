package storage_test

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/NewsDesk/internal/storage"
	"github.com/LJTian/NewsDesk/internal/storage/storagetest"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *storage.Store, n int) []storage.NewsItem {
	t.Helper()
	out := make([]storage.NewsItem, 0, n)
	for i := 0; i < n; i++ {
		item := storage.NewsItem{
			Title:            fmt.Sprintf("title %d", i),
			ShortDescription: "desc",
			Link:             fmt.Sprintf("https://example.com/%d", i),
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Create(context.Background(), &item))
		out = append(out, item)
	}
	return out
}

func TestCreateGetDelete(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()

	item := storage.NewsItem{
		Title:            "  " + strings.Repeat("标", 300) + "  ",
		ShortDescription: " body ",
		Link:             "https://example.com/a",
	}
	require.NoError(t, s.Create(ctx, &item))
	require.NotZero(t, item.ID)

	got, err := s.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, []rune(got.Title), 255)
	assert.Equal(t, "body", got.ShortDescription)
	assert.Nil(t, got.Image)
	assert.Equal(t, "", got.ImagePath())
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, s.Delete(ctx, item.ID))
	_, err = s.Get(ctx, item.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, item.ID), storage.ErrNotFound)
}

func TestSetImageAndUpdateFields(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()
	item := seed(t, s, 1)[0]

	meta := map[string]any{"source_url": "https://x/y.png", "width": 400}
	require.NoError(t, s.SetImage(ctx, item.ID, "news_images/a.png", meta))

	got, err := s.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "news_images/a.png", got.ImagePath())
	assert.Equal(t, "https://x/y.png", got.ImageMeta["source_url"])

	got.Title = "changed"
	got.Image = nil
	got.ImageMeta = nil
	require.NoError(t, s.UpdateFields(ctx, got))

	got, err = s.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Title)
	assert.Nil(t, got.Image)
	assert.Empty(t, got.ImageMeta)

	assert.ErrorIs(t, s.SetImage(ctx, 9999, "news_images/x.png", nil), storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdateFields(ctx, &storage.NewsItem{ID: 9999, Title: "t"}), storage.ErrNotFound)
}

func TestCountAndOldest(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()
	items := seed(t, s, 5)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	oldest, err := s.Oldest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, oldest, 2)
	assert.Equal(t, items[0].ID, oldest[0].ID)
	assert.Equal(t, items[1].ID, oldest[1].ID)

	none, err := s.Oldest(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListPageOrderingAndBounds(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()
	items := seed(t, s, 7)

	page, err := s.ListPage(ctx, 1, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 7, page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, items[6].ID, page.Items[0].ID)
	assert.Equal(t, items[5].ID, page.Items[1].ID)
	assert.Equal(t, items[4].ID, page.Items[2].ID)

	page, err = s.ListPage(ctx, 3, 3)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, items[0].ID, page.Items[0].ID)

	page, err = s.ListPage(ctx, 4, 3)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 7, page.Total)

	// (page-1)*limit 溢出 int 时仍应视为越界页
	page, err = s.ListPage(ctx, math.MaxInt/2+2, 4)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 7, page.Total)

	page, err = s.ListPage(ctx, 1, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, page.Items, 7)

	_, err = s.ListPage(ctx, 0, 3)
	assert.Error(t, err)
}

func TestMissingImages(t *testing.T) {
	s := storagetest.NewStore(t)
	ctx := context.Background()
	items := seed(t, s, 3)
	require.NoError(t, s.SetImage(ctx, items[1].ID, "news_images/b.jpg", nil))

	missing, err := s.MissingImages(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, items[2].ID, missing[0].ID)
	assert.Equal(t, items[0].ID, missing[1].ID)
}
