// Package storagetest 为测试提供基于 SQLite 内存库的 Store。
package storagetest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/LJTian/NewsDesk/internal/storage"
)

// OpenDB 每个测试独立的内存数据库
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewStore 不带缓存的 Store
func NewStore(t testing.TB) *storage.Store {
	t.Helper()
	return NewStoreWithCache(t, nil)
}

func NewStoreWithCache(t testing.TB, cache *storage.PageCache) *storage.Store {
	t.Helper()
	s, err := storage.NewStoreWithDB(OpenDB(t), cache, zerolog.Nop())
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}
