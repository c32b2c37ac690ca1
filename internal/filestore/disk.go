package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Disk 本地磁盘上的 public 目录，由 HTTP 服务以静态文件方式对外提供
type Disk struct {
	root    string
	baseURL string
}

func NewDisk(root, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root %s: %w", root, err)
	}
	return &Disk{root: root, baseURL: baseURL}, nil
}

// Root 返回存储根目录
func (d *Disk) Root() string {
	return d.root
}

func (d *Disk) resolve(p string) (string, error) {
	key, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(key)), nil
}

func (d *Disk) Exists(_ context.Context, p string) (bool, error) {
	full, err := d.resolve(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("filestore: stat %s: %w", p, err)
	}
	return !info.IsDir(), nil
}

// Put 先写临时文件再 rename，避免读方看到写了一半的图片
func (d *Disk) Put(_ context.Context, p string, data []byte, _ string) error {
	full, err := d.resolve(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: create dir for %s: %w", p, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp for %s: %w", p, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close %s: %w", p, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("filestore: chmod %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("filestore: rename %s: %w", p, err)
	}
	return nil
}

// Delete 文件不存在时视为成功
func (d *Disk) Delete(_ context.Context, p string) error {
	full, err := d.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: delete %s: %w", p, err)
	}
	return nil
}

func (d *Disk) URL(p string) string {
	key, err := cleanKey(p)
	if err != nil {
		return ""
	}
	return joinURL(d.baseURL, key)
}
