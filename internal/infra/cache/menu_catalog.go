package cache

import (
	"context"
	"encoding/json"
	"time"

	"cafe/internal/domain/model"
	repo "cafe/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const menuListKey = "menus:all"

// MenuCatalog は販売中・停止中を含む全メニューをキャッシュする。
// キャッシュが壊れていても DB から読んで返す。
type MenuCatalog struct {
	menus repo.MenuRepository
	store Store
	ttl   time.Duration
	log   *zap.Logger
	group singleflight.Group
}

// DI
func NewMenuCatalog(menus repo.MenuRepository, store Store, ttl time.Duration, log *zap.Logger) *MenuCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MenuCatalog{menus: menus, store: store, ttl: ttl, log: log}
}

// List はカテゴリ→ID順
func (c *MenuCatalog) List(ctx context.Context, f repo.MenuFilter) ([]model.Menu, error) {
	all, err := c.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Menu, 0, len(all))
	for _, m := range all {
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		if f.AvailableOnly && !m.IsAvailable {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Lookup はIDでまとめて引く。キャッシュに無いもの（削除済み等）はDBから読む。
func (c *MenuCatalog) Lookup(ctx context.Context, ids []int64) (map[int64]model.Menu, error) {
	out := make(map[int64]model.Menu, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	all, err := c.all(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Menu, len(all))
	for _, m := range all {
		byID[m.ID] = m
	}

	var missing []int64
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out[id] = m
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	rest, err := c.menus.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, m := range rest {
		out[m.ID] = m
	}
	return out, nil
}

// SetAvailability は更新してキャッシュを捨てる
func (c *MenuCatalog) SetAvailability(ctx context.Context, id int64, available bool) (model.Menu, error) {
	m, err := c.menus.SetAvailability(ctx, id, available)
	if err != nil {
		return model.Menu{}, err
	}
	c.Invalidate(ctx)
	return m, nil
}

func (c *MenuCatalog) Invalidate(ctx context.Context) {
	if err := c.store.Delete(ctx, menuListKey); err != nil {
		c.log.Warn("menu cache invalidate failed", zap.Error(err))
	}
}

func (c *MenuCatalog) all(ctx context.Context) ([]model.Menu, error) {
	if menus, ok := c.cached(ctx); ok {
		return menus, nil
	}

	v, err, _ := c.group.Do(menuListKey, func() (interface{}, error) {
		if menus, ok := c.cached(ctx); ok {
			return menus, nil
		}
		menus, err := c.menus.List(ctx, repo.MenuFilter{})
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(menus); err == nil {
			if err := c.store.Set(ctx, menuListKey, b, c.ttl); err != nil {
				c.log.Warn("menu cache set failed", zap.Error(err))
			}
		}
		return menus, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Menu), nil
}

func (c *MenuCatalog) cached(ctx context.Context) ([]model.Menu, bool) {
	b, ok, err := c.store.Get(ctx, menuListKey)
	if err != nil {
		c.log.Warn("menu cache get failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var menus []model.Menu
	if err := json.Unmarshal(b, &menus); err != nil {
		return nil, false
	}
	return menus, true
}
