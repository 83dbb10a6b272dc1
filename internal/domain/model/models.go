package model

// All はAutoMigrate対象
func All() []any {
	return []any{
		&Menu{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&PaymentAttempt{},
		&OrderNumberSequence{},
		&AuditLog{},
	}
}
