// Package database 负责建立 MySQL 与 Redis 连接。
package database

import (
	"fmt"

	"rift-go/internal/config"
	"rift-go/internal/model"
	"rift-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenMySQL 打开 MySQL 连接、配置连接池并迁移内联存储表。
func OpenMySQL(cfg config.MySQLConfig) (*gorm.DB, error) {
	return Open(mysql.Open(cfg.DSN), cfg)
}

// Open 使用任意 gorm 方言打开数据库。TranslateError 必须开启，
// 内联层依赖它识别 checksum 唯一索引冲突。
func Open(dialector gorm.Dialector, cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLife)
	}

	if err := db.AutoMigrate(&model.InlineFile{}); err != nil {
		return nil, fmt.Errorf("auto migrate inline_file: %w", err)
	}

	log.Info("MySQL database connected successfully")
	return db, nil
}

// Close 关闭底层连接池。
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
