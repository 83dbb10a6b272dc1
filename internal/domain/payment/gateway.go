// Package payment は決済事業者アダプタの共通インターフェース。
package payment

import (
	"context"
	"encoding/json"
	"time"

	"cafe/internal/domain/model"
)

// Gateway はKakaoPay/NaverPayの共通操作。
// エラーは apperr の Gateway* 種別で返す。
type Gateway interface {
	Method() model.PaymentMethod
	Prepare(ctx context.Context, req PrepareRequest) (PrepareResult, error)
	Approve(ctx context.Context, req ApproveRequest) (ApproveResult, error)
	Cancel(ctx context.Context, req CancelRequest) (CancelResult, error)
}

type PrepareRequest struct {
	Order          model.Order
	ItemName       string
	Quantity       int64
	IdempotencyKey string
}

// PrepareResult はKakaoPayならtidとリダイレクトURL、NaverPayならSDKパラメータ。
type PrepareResult struct {
	TID                string     `json:"tid,omitempty"`
	NextRedirectPCURL  string     `json:"nextRedirectPcUrl,omitempty"`
	NextRedirectMobURL string     `json:"nextRedirectMobileUrl,omitempty"`
	NextRedirectAppURL string     `json:"nextRedirectAppUrl,omitempty"`
	SDK                *SDKParams `json:"sdk,omitempty"`
}

// SDKParams はNaverPay JS SDKに渡す値
type SDKParams struct {
	Mode             string `json:"mode"`
	ClientID         string `json:"clientId"`
	ChainID          string `json:"chainId"`
	MerchantPayKey   string `json:"merchantPayKey"`
	MerchantUserKey  string `json:"merchantUserKey"`
	ProductName      string `json:"productName"`
	ProductCount     int64  `json:"productCount"`
	TotalPayAmount   int64  `json:"totalPayAmount"`
	TaxScopeAmount   int64  `json:"taxScopeAmount"`
	TaxExScopeAmount int64  `json:"taxExScopeAmount"`
	ReturnURL        string `json:"returnUrl"`
}

// Proof は事業者から戻ってきた承認用の値
type Proof struct {
	TID       string // kakao
	PGToken   string // kakao
	PaymentID string // naver
}

type ApproveRequest struct {
	Order          model.Order
	Proof          Proof
	IdempotencyKey string
}

// ApproveResult の Success は事業者の成功判定（HTTP 200 かつエラーコード無し等）。
type ApproveResult struct {
	Success    bool            `json:"success"`
	ExternalID string          `json:"externalId"`
	PaidAmount int64           `json:"paidAmount"`
	ApprovedAt time.Time       `json:"approvedAt"`
	PayMethod  string          `json:"payMethod,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

type CancelRequest struct {
	Order          model.Order
	Amount         int64
	Reason         string
	IdempotencyKey string
}

type CancelResult struct {
	ExternalID      string          `json:"externalId"`
	CanceledAmount  int64           `json:"canceledAmount"`
	RemainingAmount int64           `json:"remainingAmount"`
	Replayed        bool            `json:"replayed"`
	Raw             json.RawMessage `json:"raw,omitempty"`
}
