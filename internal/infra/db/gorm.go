package db

import (
	"fmt"

	"cafe/internal/config"
	"cafe/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
// DB_DRIVER=sqlite は開発用（行ロックは効かない）。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	switch cfg.DBDriver {
	case "sqlite":
		gdb, err := gorm.Open(sqlite.Open(cfg.SQLitePath+"?_busy_timeout=5000&_foreign_keys=on"), gcfg)
		if err != nil {
			return nil, err
		}
		// sqliteは書き込みが1本なので直列にする
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	case "postgres", "":
		gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gcfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		return gdb, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

// Migrate はテーブルを作る（cafe-api migrate）
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(model.All()...)
}
