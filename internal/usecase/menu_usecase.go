package usecase

import (
	"context"
	"fmt"
	"strings"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	repo "cafe/internal/repository"
)

// MenuCatalog はキャッシュ付きのメニュー読み出し（infra/cache が実装）
type MenuCatalog interface {
	List(ctx context.Context, f repo.MenuFilter) ([]model.Menu, error)
	Lookup(ctx context.Context, ids []int64) (map[int64]model.Menu, error)
	SetAvailability(ctx context.Context, id int64, available bool) (model.Menu, error)
}

type MenuUsecase struct {
	catalog   MenuCatalog
	auditRepo repo.AuditLogRepository
	clock     Clock
}

// DI
func NewMenuUsecase(catalog MenuCatalog, auditRepo repo.AuditLogRepository, clock Clock) *MenuUsecase {
	return &MenuUsecase{catalog: catalog, auditRepo: auditRepo, clock: clock}
}

// GET /api/menus の入力
type ListMenusInput struct {
	Category      string
	AvailableOnly bool
}

func (u *MenuUsecase) List(ctx context.Context, in ListMenusInput) ([]model.Menu, error) {
	category := strings.TrimSpace(in.Category)
	if len(category) > 50 {
		return nil, apperr.Validation("invalid category")
	}
	menus, err := u.catalog.List(ctx, repo.MenuFilter{Category: category, AvailableOnly: in.AvailableOnly})
	if err != nil {
		return nil, apperr.Internal("db error", err)
	}
	return menus, nil
}

// SetAvailability は販売可否を切り替える（キャッシュも捨てる）
func (u *MenuUsecase) SetAvailability(ctx context.Context, actor model.Actor, menuID int64, available bool) (model.Menu, error) {
	if menuID <= 0 {
		return model.Menu{}, apperr.Validation("invalid menu id")
	}

	//変更前
	before, err := u.catalog.Lookup(ctx, []int64{menuID})
	if err != nil {
		return model.Menu{}, apperr.Internal("db error", err)
	}
	prev, ok := before[menuID]
	if !ok || prev.DeletedAt.Valid {
		return model.Menu{}, apperr.NotFound("menu not found")
	}

	m, err := u.catalog.SetAvailability(ctx, menuID, available)
	if err != nil {
		return model.Menu{}, repoError(err, "menu not found")
	}

	//監査ログ（UPDATE_MENU）
	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorType:    actor.Type,
		ActorID:      actor.ID,
		Action:       model.AuditActionUpdateMenu,
		ResourceType: model.AuditResourceMenu,
		ResourceID:   menuID,
		BeforeJSON:   fmt.Sprintf(`{"isAvailable":%t}`, prev.IsAvailable),
		AfterJSON:    fmt.Sprintf(`{"isAvailable":%t}`, available),
		CreatedAt:    u.clock.Now(),
	}); err != nil {
		return model.Menu{}, apperr.Internal("db error", err)
	}
	return m, nil
}
