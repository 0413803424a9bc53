package storage

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB 開啟 SQLite 資料庫，path 為 ":memory:" 時使用記憶體資料庫
func NewSQLiteDB(path string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite 只允許單一寫入者；記憶體資料庫也必須固定在同一條連線上
	sqlDB.SetMaxOpenConns(1)

	return &DB{DB: db}, nil
}
