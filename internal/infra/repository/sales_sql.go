package repository

import (
	"context"
	"database/sql"
	"time"

	"cafe/internal/domain/model"
	repo "cafe/internal/repository"
)

// 部分取消した分は売上から除く
const salesQuery = `SELECT paid_at, total_amount - cancelled_amount AS net_amount FROM orders
WHERE paid_at >= $1 AND paid_at < $2 AND status IN ($3, $4, $5, $6)`

// 売上集計はgormを通さず素のSQLで読む
type SalesSQLReader struct {
	db *sql.DB
}

func NewSalesSQLReader(db *sql.DB) *SalesSQLReader {
	return &SalesSQLReader{db: db}
}

func (r *SalesSQLReader) Summarize(ctx context.Context, from, to time.Time, loc *time.Location) (repo.SalesSummary, error) {
	var out repo.SalesSummary

	rows, err := r.db.QueryContext(ctx, salesQuery,
		from, to,
		model.OrderStatusPaid, model.OrderStatusPreparing, model.OrderStatusReady, model.OrderStatusCompleted,
	)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var paidAt time.Time
		var amount int64
		if err := rows.Scan(&paidAt, &amount); err != nil {
			return repo.SalesSummary{}, err
		}
		out.TotalAmount += amount
		out.OrderCount++
		out.Hourly[paidAt.In(loc).Hour()] += amount
	}
	if err := rows.Err(); err != nil {
		return repo.SalesSummary{}, err
	}
	return out, nil
}
