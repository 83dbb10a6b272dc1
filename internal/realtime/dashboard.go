package realtime

import (
	"context"
	"time"

	"cafe/internal/domain/model"
	"cafe/internal/domain/view"
	repo "cafe/internal/repository"
)

const recentOrderCount = 5

// RecentOrders は最近の注文（新しい順）
type RecentOrders interface {
	ListRecent(ctx context.Context, limit int) ([]model.Order, error)
}

// Snapshot は接続直後に送る当日の状況
type Snapshot struct {
	TodaySales   int64        `json:"todaySales"`
	OrderCount   int64        `json:"orderCount"`
	Hourly       [24]int64    `json:"hourly"`
	RecentOrders []view.Order `json:"recentOrders"`
}

// Update は定期的に送る要約
type Update struct {
	TodaySales  int64       `json:"todaySales"`
	OrderCount  int64       `json:"orderCount"`
	LatestOrder *view.Order `json:"latestOrder"`
}

// Dashboard は売上（KSTの当日）と最近の注文を読む
type Dashboard struct {
	sales  repo.SalesReader
	orders RecentOrders
	now    func() time.Time
}

// DI
func NewDashboard(sales repo.SalesReader, orders RecentOrders, now func() time.Time) *Dashboard {
	if now == nil {
		now = time.Now
	}
	return &Dashboard{sales: sales, orders: orders, now: now}
}

func (d *Dashboard) Snapshot(ctx context.Context) (Snapshot, error) {
	sum, err := d.today(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	recent, err := d.orders.ListRecent(ctx, recentOrderCount)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		TodaySales:   sum.TotalAmount,
		OrderCount:   sum.OrderCount,
		Hourly:       sum.Hourly,
		RecentOrders: view.FromOrders(recent),
	}, nil
}

func (d *Dashboard) Update(ctx context.Context) (Update, error) {
	sum, err := d.today(ctx)
	if err != nil {
		return Update{}, err
	}
	latest, err := d.orders.ListRecent(ctx, 1)
	if err != nil {
		return Update{}, err
	}
	u := Update{TodaySales: sum.TotalAmount, OrderCount: sum.OrderCount}
	if len(latest) > 0 {
		v := view.FromOrder(latest[0])
		u.LatestOrder = &v
	}
	return u, nil
}

func (d *Dashboard) today(ctx context.Context) (repo.SalesSummary, error) {
	from, to := model.DayRangeKST(d.now())
	return d.sales.Summarize(ctx, from, to, model.KST)
}
