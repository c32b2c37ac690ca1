// Package filestore 封装对外公开的文件存储区（本地 public 目录或 S3 兼容对象存储），
// 路径统一为以 "/" 分隔的相对路径，例如 news_images/abc.jpg。
package filestore

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrInvalidPath 路径为空或试图越出存储根目录
var ErrInvalidPath = errors.New("filestore: invalid path")

// Store 公共文件区的最小能力集合
type Store interface {
	Exists(ctx context.Context, p string) (bool, error)
	Put(ctx context.Context, p string, data []byte, contentType string) error
	Delete(ctx context.Context, p string) error
	// URL 返回可直接访问的绝对地址
	URL(p string) string
}

// DeleteIfExists 文件存在时才删除；空路径直接返回，不产生任何存储调用
func DeleteIfExists(ctx context.Context, s Store, p string) (bool, error) {
	if strings.TrimSpace(p) == "" {
		return false, nil
	}
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := s.Delete(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

// cleanKey 规范化相对路径，去掉前导 "/" 与 ".." 等越界片段
func cleanKey(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", ErrInvalidPath
	}
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" || clean == "." {
		return "", ErrInvalidPath
	}
	return clean, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
