// Package dbtest はテスト用のsqlite（メモリ）DBを用意する。
package dbtest

import (
	"fmt"
	"testing"

	"cafe/internal/domain/model"
	"cafe/internal/infra/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New はテストごとに独立したDBを返す。接続は1本に絞る。
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// SeedMenus はメニューを登録してID付きで返す
func SeedMenus(t testing.TB, gdb *gorm.DB, menus ...model.Menu) []model.Menu {
	t.Helper()
	for i := range menus {
		require.NoError(t, gdb.Create(&menus[i]).Error)
		if !menus[i].IsAvailable {
			// default:true を上書きする
			require.NoError(t, gdb.Model(&menus[i]).Update("is_available", false).Error)
		}
	}
	return menus
}

// DefaultMenus はテストでよく使う3品
func DefaultMenus() []model.Menu {
	return []model.Menu{
		{Name: "아메리카노", Category: "coffee", Price: 4500, IsAvailable: true, ImageURL: "/img/americano.png"},
		{Name: "카페라떼", Category: "coffee", Price: 5000, IsAvailable: true, ImageURL: "/img/latte.png"},
		{Name: "치즈케이크", Category: "dessert", Price: 2000, IsAvailable: true, ImageURL: "/img/cheesecake.png"},
	}
}
