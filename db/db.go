// Package db opens the sqlite database behind the durable conversation
// store. The driver is pure Go, so builds stay cgo-free.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dimanchick22/alicebot/db/models"
)

// Config tunes the sqlite file behind the store. An empty Path puts the
// file under ./data.
type Config struct {
	Path          string
	BusyTimeoutMs int
	WAL           bool
	ForeignKeys   bool
	MaxOpenConns  int
	AutoMigrate   bool
}

func DefaultConfig() Config {
	return Config{
		BusyTimeoutMs: 5000,
		WAL:           true,
		ForeignKeys:   true,
		MaxOpenConns:  1,
		AutoMigrate:   true,
	}
}

// Open opens the database file, caps the connection pool, and migrates the
// schema when cfg.AutoMigrate is set.
func Open(cfg Config) (*gorm.DB, error) {
	path, err := ResolveSQLitePath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}

	gdb, err := gorm.Open(sqlite.Open(dsn(path, cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	if cfg.AutoMigrate {
		if err := gdb.AutoMigrate(&models.ConversationTurn{}); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return gdb, nil
}

// ResolveSQLitePath normalizes the database file path and makes sure its
// parent directory exists.
func ResolveSQLitePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "alice.sqlite")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func dsn(path string, cfg Config) string {
	var params []string
	if cfg.BusyTimeoutMs > 0 {
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.BusyTimeoutMs))
	}
	if cfg.WAL {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	if cfg.ForeignKeys {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if len(params) == 0 {
		return path
	}
	return path + "?" + strings.Join(params, "&")
}
