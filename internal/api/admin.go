package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/NewsDesk/internal/news"
	"github.com/LJTian/NewsDesk/internal/storage"
	"github.com/LJTian/NewsDesk/internal/validation"
)

// adminView 后台接口返回完整记录并附带图片地址
type adminView struct {
	storage.NewsItem
	ImageURL *string `json:"image_url"`
}

func (s *Server) adminView(c *gin.Context, n *storage.NewsItem) adminView {
	return adminView{NewsItem: *n, ImageURL: s.imageURL(c.Request.Context(), n)}
}

// bindInput 同时支持 JSON 与 multipart/form-data（带 image 文件）
func bindInput(c *gin.Context) (news.Input, error) {
	var in news.Input
	ct := c.ContentType()
	if ct == "multipart/form-data" || ct == "application/x-www-form-urlencoded" {
		in.Title = c.PostForm("title")
		in.ShortDescription = c.PostForm("short_description")
		in.Link = c.PostForm("link")

		fh, err := c.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) || (err != nil && ct != "multipart/form-data") {
			return in, nil
		}
		if err != nil {
			return in, fmt.Errorf("read image field: %w", err)
		}
		f, err := fh.Open()
		if err != nil {
			return in, fmt.Errorf("open uploaded image: %w", err)
		}
		defer f.Close()
		// 多读一个字节用于判断是否超限
		data, err := io.ReadAll(io.LimitReader(f, news.MaxUploadBytes+1))
		if err != nil {
			return in, fmt.Errorf("read uploaded image: %w", err)
		}
		in.Upload = &news.Upload{Filename: fh.Filename, Data: data}
		return in, nil
	}

	if err := c.ShouldBindJSON(&in); err != nil {
		verr := validation.New()
		verr.Add("body", "The request body must be a valid JSON object.")
		return in, verr
	}
	return in, nil
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (s *Server) writeAdminError(c *gin.Context, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "The given data was invalid.",
			"errors":  verr.Fields,
		})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "News item not found."})
	default:
		s.log.Error().Err(err).Str("route", c.FullPath()).Msg("admin news request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An error occurred while saving news."})
	}
}

// createNews POST /admin/news
func (s *Server) createNews(c *gin.Context) {
	in, err := bindInput(c)
	if err != nil {
		s.writeAdminError(c, err)
		return
	}
	item, err := s.news.Create(c.Request.Context(), in)
	if err != nil {
		s.writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": s.adminView(c, item)})
}

// getNews GET /admin/news/:id
func (s *Server) getNews(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.writeAdminError(c, storage.ErrNotFound)
		return
	}
	item, err := s.news.Get(c.Request.Context(), id)
	if err != nil {
		s.writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.adminView(c, item)})
}

// updateNews PUT /admin/news/:id
func (s *Server) updateNews(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.writeAdminError(c, storage.ErrNotFound)
		return
	}
	in, err := bindInput(c)
	if err != nil {
		s.writeAdminError(c, err)
		return
	}
	item, err := s.news.Update(c.Request.Context(), id, in)
	if err != nil {
		s.writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.adminView(c, item)})
}

// deleteNews DELETE /admin/news/:id
func (s *Server) deleteNews(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.writeAdminError(c, storage.ErrNotFound)
		return
	}
	if err := s.news.Delete(c.Request.Context(), id); err != nil {
		s.writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
