// Package db opens the SQL backends of the row store.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens backend ("mysql" or "sqlite") with dsn. An empty sqlite dsn
// opens a private in-memory database.
func Connect(backend, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "mysql":
		if dsn == "" {
			return nil, fmt.Errorf("db: mysql needs DB_DSN")
		}
		dialector = mysql.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "file::memory:"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unsupported backend %q", backend)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", backend, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}
