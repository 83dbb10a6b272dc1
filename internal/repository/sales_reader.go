package repository

import (
	"context"
	"time"
)

// 当日売上の集計
type SalesSummary struct {
	TotalAmount int64     `json:"totalAmount"`
	OrderCount  int64     `json:"orderCount"`
	Hourly      [24]int64 `json:"hourly"`
}

type SalesReader interface {
	// [from, to) に支払われた注文を集計する。時間帯は loc で数える。
	Summarize(ctx context.Context, from, to time.Time, loc *time.Location) (SalesSummary, error)
}
