package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/NewsDesk/internal/storage"
	"github.com/LJTian/NewsDesk/internal/validation"
)

const createdAtLayout = "2006-01-02 15:04:05"

// NewsView 对外公开的新闻条目
type NewsView struct {
	ID               uint    `json:"id"`
	Title            string  `json:"title"`
	ShortDescription string  `json:"short_description"`
	Link             string  `json:"link"`
	ImageURL         *string `json:"image_url"`
	CreatedAt        string  `json:"created_at"`
}

type pageLinks struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type pageMeta struct {
	CurrentPage int    `json:"current_page"`
	From        *int   `json:"from"`
	LastPage    int    `json:"last_page"`
	Path        string `json:"path"`
	PerPage     int    `json:"per_page"`
	To          *int   `json:"to"`
	Total       int64  `json:"total"`
}

type listResponse struct {
	Data  []NewsView `json:"data"`
	Links pageLinks  `json:"links"`
	Meta  pageMeta   `json:"meta"`
}

type listParams struct {
	Page  int `json:"page" validate:"min=1"`
	Limit int `json:"limit" validate:"min=1,max=100"`
}

func parseListParams(c *gin.Context) (listParams, error) {
	verr := validation.New()
	var p listParams
	var err error
	if p.Page, err = strconv.Atoi(c.Param("page")); err != nil {
		verr.Add("page", "The page field must be an integer.")
	}
	if p.Limit, err = strconv.Atoi(c.Param("limit")); err != nil {
		verr.Add("limit", "The limit field must be an integer.")
	}
	return p, validation.Struct(p, verr).OrNil()
}

// listNews GET /news/:page/:limit
func (s *Server) listNews(c *gin.Context) {
	p, err := parseListParams(c)
	if err != nil {
		verr := err.(*validation.Error)
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Invalid pagination parameters",
			"errors":  verr.Fields,
		})
		return
	}

	ctx := c.Request.Context()
	page, err := s.list.ListPage(ctx, p.Page, p.Limit)
	if err != nil {
		s.log.Error().Err(err).Int("page", p.Page).Int("limit", p.Limit).Msg("list news failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while fetching news."})
		return
	}

	views := make([]NewsView, 0, len(page.Items))
	for i := range page.Items {
		views = append(views, s.toView(ctx, &page.Items[i]))
	}
	c.JSON(http.StatusOK, listResponse{
		Data:  views,
		Links: s.links(p.Page, p.Limit, page.Total),
		Meta:  s.meta(p.Page, p.Limit, len(views), page.Total),
	})
}

func (s *Server) toView(ctx context.Context, n *storage.NewsItem) NewsView {
	return NewsView{
		ID:               n.ID,
		Title:            n.Title,
		ShortDescription: n.ShortDescription,
		Link:             n.Link,
		ImageURL:         s.imageURL(ctx, n),
		CreatedAt:        n.CreatedAt.UTC().Format(createdAtLayout),
	}
}

// imageURL 文件确实存在时才返回绝对地址
func (s *Server) imageURL(ctx context.Context, n *storage.NewsItem) *string {
	p := n.ImagePath()
	if p == "" {
		return nil
	}
	ok, err := s.files.Exists(ctx, p)
	if err != nil {
		s.log.Warn().Err(err).Uint("news_id", n.ID).Str("path", p).Msg("check news image failed")
		return nil
	}
	if !ok {
		return nil
	}
	u := s.files.URL(p)
	return &u
}

func lastPage(limit int, total int64) int {
	if total <= 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func (s *Server) pageURL(page, limit int) string {
	return fmt.Sprintf("%s/news/%d/%d", s.baseURL, page, limit)
}

func (s *Server) links(page, limit int, total int64) pageLinks {
	last := lastPage(limit, total)
	l := pageLinks{
		First: s.pageURL(1, limit),
		Last:  s.pageURL(last, limit),
	}
	if page > 1 {
		prev := s.pageURL(min(page-1, last), limit)
		l.Prev = &prev
	}
	if page < last {
		next := s.pageURL(page+1, limit)
		l.Next = &next
	}
	return l
}

func (s *Server) meta(page, limit, count int, total int64) pageMeta {
	m := pageMeta{
		CurrentPage: page,
		LastPage:    lastPage(limit, total),
		Path:        s.baseURL + "/news",
		PerPage:     limit,
		Total:       total,
	}
	if count > 0 {
		from := (page-1)*limit + 1
		to := from + count - 1
		m.From = &from
		m.To = &to
	}
	return m
}
