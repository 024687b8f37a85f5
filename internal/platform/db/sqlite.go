package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectSQLite opens a file database, or a shared in-memory one when path
// is empty. Writers are serialized through a single connection.
func ConnectSQLite(path string) (*Database, error) {
	dsn := "file::memory:?cache=shared"
	if path = strings.TrimSpace(path); path != "" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite sql db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return finish(db, "sqlite")
}
