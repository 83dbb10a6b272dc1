package usecase

import "cafe/internal/domain/model"

// 注文ステータスの遷移表。cancelled/refunded は終端。
var orderTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending: {
		model.OrderStatusPaymentFailed,
		model.OrderStatusCancelled,
	},
	model.OrderStatusPaid: {
		model.OrderStatusPreparing,
		model.OrderStatusReady,
		model.OrderStatusCompleted,
		model.OrderStatusCancelled,
		model.OrderStatusRefunded,
	},
	model.OrderStatusPreparing: {
		model.OrderStatusReady,
		model.OrderStatusCompleted,
		model.OrderStatusCancelled,
		model.OrderStatusRefunded,
	},
	model.OrderStatusReady: {
		model.OrderStatusCompleted,
		model.OrderStatusCancelled,
		model.OrderStatusRefunded,
	},
	model.OrderStatusCompleted: {
		model.OrderStatusCancelled,
		model.OrderStatusRefunded,
	},
	model.OrderStatusPaymentFailed: {
		model.OrderStatusCancelled,
	},
}

// CanTransition は管理者・自動処理が from→to に動かせるか。
// pending→paid は承認処理だけが行うのでここには無い。
func CanTransition(from, to model.OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionItem(from, to model.ItemStatus) bool {
	switch from {
	case model.ItemStatusPending:
		return to == model.ItemStatusCompleted || to == model.ItemStatusCancelled
	case model.ItemStatusCompleted:
		return to == model.ItemStatusRefunded
	}
	return false
}

// DeriveOrderStatus は明細の状態から注文ステータスを決める。
//   - 全明細 cancelled → cancelled
//   - 全明細 completed/refunded で completed が1つ以上 → completed
//   - それ以外は current のまま
func DeriveOrderStatus(current model.OrderStatus, items []model.OrderItem) model.OrderStatus {
	if len(items) == 0 {
		return current
	}

	allCancelled := true
	allDone := true
	anyCompleted := false
	for _, it := range items {
		if it.Status != model.ItemStatusCancelled {
			allCancelled = false
		}
		switch it.Status {
		case model.ItemStatusCompleted:
			anyCompleted = true
		case model.ItemStatusRefunded:
		default:
			allDone = false
		}
	}

	switch {
	case allCancelled:
		return model.OrderStatusCancelled
	case allDone && anyCompleted:
		return model.OrderStatusCompleted
	default:
		return current
	}
}
