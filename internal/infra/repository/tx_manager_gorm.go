package repository

import (
	"context"

	repo "cafe/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	carts      repo.CartRepository
	cartItems  repo.CartItemRepository
	menus      repo.MenuRepository
	attempts   repo.PaymentAttemptRepository
	auditLogs  repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                   { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository           { return r.orderItems }
func (r *txReposGorm) Carts() repo.CartRepository                     { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository             { return r.cartItems }
func (r *txReposGorm) Menus() repo.MenuRepository                     { return r.menus }
func (r *txReposGorm) PaymentAttempts() repo.PaymentAttemptRepository { return r.attempts }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository             { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// NewRepos はtx外で使うrepo一式
func NewRepos(db *gorm.DB) repo.TxRepos {
	return newTxRepos(db)
}

func newTxRepos(db *gorm.DB) *txReposGorm {
	cart := NewCartGormRepository(db)
	return &txReposGorm{
		orders:     NewOrderGormRepository(db),
		orderItems: NewOrderItemGormRepository(db),
		carts:      cart,
		cartItems:  cart,
		menus:      NewMenuGormRepository(db),
		attempts:   NewPaymentAttemptGormRepository(db),
		auditLogs:  NewAuditLogGormRepository(db),
	}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(newTxRepos(tx))
	})
}
