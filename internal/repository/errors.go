package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 期待した状態と違った（CAS失敗、一意制約違反）
	ErrConflict = errors.New("conflict")
)
