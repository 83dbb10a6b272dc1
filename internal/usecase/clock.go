package usecase

import (
	"time"

	"github.com/google/uuid"
)

// Clock は現在時刻（テストで差し替える）
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// 冪等キーやセッションIDの発行
type IDGen func() string

func UUIDGen() IDGen { return uuid.NewString }
