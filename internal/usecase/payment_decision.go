package usecase

import (
	"cafe/internal/domain/model"
	"cafe/internal/domain/payment"
)

type approvalOutcome int

const (
	// 承認OK。採番して paid にする
	approvalPaid approvalOutcome = iota
	// 事業者が成功と言っていない。取消は不要
	approvalDeclined
	// 成功だが金額が違う。承認された金額を取り消す
	approvalMismatch
)

// approvalDecision は承認応答に対してやること
type approvalDecision struct {
	Outcome    approvalOutcome
	Next       model.OrderStatus
	Compensate int64 // 補償取消の金額（0なら取消しない）
	Reason     string
}

// decideApproval は (注文, 事業者の応答) から次の状態と補償取消を決める。I/Oはしない。
func decideApproval(o model.Order, res payment.ApproveResult) approvalDecision {
	if !res.Success {
		return approvalDecision{
			Outcome: approvalDeclined,
			Next:    model.OrderStatusPaymentFailed,
			Reason:  "payment not approved by gateway",
		}
	}
	if res.PaidAmount != o.TotalAmount {
		return approvalDecision{
			Outcome:    approvalMismatch,
			Next:       model.OrderStatusPaymentFailed,
			Compensate: res.PaidAmount,
			Reason:     "paid amount does not match order total",
		}
	}
	return approvalDecision{Outcome: approvalPaid, Next: model.OrderStatusPaid}
}
