package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cafe/internal/apperr"
	"cafe/internal/config"
	"cafe/internal/domain/model"
	"cafe/internal/domain/payment"
	"cafe/internal/metrics"

	"go.uber.org/zap"
)

// KakaoPay はKakaoPayオンライン決済（ready/approve/cancel）
type KakaoPay struct {
	cfg  config.KakaoConfig
	urls URLs
	t    *transport
}

// DI
func NewKakaoPay(cfg config.KakaoConfig, urls URLs, timeouts Timeouts, client *http.Client, log *zap.Logger, m *metrics.Metrics) *KakaoPay {
	if client == nil {
		client = &http.Client{}
	}
	return &KakaoPay{
		cfg:  cfg,
		urls: urls,
		t: &transport{
			method:   model.PaymentMethodKakao,
			client:   client,
			timeouts: timeouts,
			log:      log.Named("kakaopay"),
			metrics:  m,
		},
	}
}

func (k *KakaoPay) Method() model.PaymentMethod { return model.PaymentMethodKakao }

type kakaoReadyRequest struct {
	CID            string `json:"cid"`
	PartnerOrderID string `json:"partner_order_id"`
	PartnerUserID  string `json:"partner_user_id"`
	ItemName       string `json:"item_name"`
	Quantity       int64  `json:"quantity"`
	TotalAmount    int64  `json:"total_amount"`
	TaxFreeAmount  int64  `json:"tax_free_amount"`
	ApprovalURL    string `json:"approval_url"`
	CancelURL      string `json:"cancel_url"`
	FailURL        string `json:"fail_url"`
}

type kakaoReadyResponse struct {
	TID                   string `json:"tid"`
	NextRedirectPCURL     string `json:"next_redirect_pc_url"`
	NextRedirectMobileURL string `json:"next_redirect_mobile_url"`
	NextRedirectAppURL    string `json:"next_redirect_app_url"`
}

type kakaoApproveRequest struct {
	CID            string `json:"cid"`
	TID            string `json:"tid"`
	PartnerOrderID string `json:"partner_order_id"`
	PartnerUserID  string `json:"partner_user_id"`
	PGToken        string `json:"pg_token"`
}

type kakaoAmount struct {
	Total   int64 `json:"total"`
	TaxFree int64 `json:"tax_free"`
	VAT     int64 `json:"vat"`
}

type kakaoApproveResponse struct {
	AID               string      `json:"aid"`
	TID               string      `json:"tid"`
	PartnerOrderID    string      `json:"partner_order_id"`
	PaymentMethodType string      `json:"payment_method_type"`
	Amount            kakaoAmount `json:"amount"`
	ApprovedAt        string      `json:"approved_at"`
	ErrorCode         any         `json:"error_code"`
}

type kakaoCancelRequest struct {
	CID                 string `json:"cid"`
	TID                 string `json:"tid"`
	CancelAmount        int64  `json:"cancel_amount"`
	CancelTaxFreeAmount int64  `json:"cancel_tax_free_amount"`
}

type kakaoCancelResponse struct {
	AID                   string      `json:"aid"`
	TID                   string      `json:"tid"`
	Status                string      `json:"status"`
	ApprovedCancelAmount  kakaoAmount `json:"approved_cancel_amount"`
	CancelAvailableAmount kakaoAmount `json:"cancel_available_amount"`
}

type kakaoError struct {
	ErrorCode    any    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Extras       struct {
		MethodResultCode    string `json:"method_result_code"`
		MethodResultMessage string `json:"method_result_message"`
	} `json:"extras"`
}

// 決済準備。tidとリダイレクトURLを返す。
func (k *KakaoPay) Prepare(ctx context.Context, req payment.PrepareRequest) (payment.PrepareResult, error) {
	orderID := strconv.FormatInt(req.Order.ID, 10)
	body := kakaoReadyRequest{
		CID:            k.cfg.CID,
		PartnerOrderID: orderID,
		PartnerUserID:  req.Order.SessionKey,
		ItemName:       req.ItemName,
		Quantity:       req.Quantity,
		TotalAmount:    req.Order.TotalAmount,
		ApprovalURL:    k.redirect("success", orderID),
		CancelURL:      k.redirect("cancel", orderID),
		FailURL:        k.redirect("fail", orderID),
	}

	var out kakaoReadyResponse
	_, err := k.post(ctx, model.PaymentOpPrepare, "/online/v1/payment/ready", body, &out)
	k.t.outcome(model.PaymentOpPrepare, err)
	if err != nil {
		return payment.PrepareResult{}, err
	}
	if out.TID == "" {
		return payment.PrepareResult{}, apperr.New(apperr.KindGatewayRejected, "kakaopay ready returned no tid")
	}

	return payment.PrepareResult{
		TID:                out.TID,
		NextRedirectPCURL:  out.NextRedirectPCURL,
		NextRedirectMobURL: out.NextRedirectMobileURL,
		NextRedirectAppURL: out.NextRedirectAppURL,
	}, nil
}

// 承認。HTTP 200 かつ error_code 無しを成功とする。
func (k *KakaoPay) Approve(ctx context.Context, req payment.ApproveRequest) (payment.ApproveResult, error) {
	body := kakaoApproveRequest{
		CID:            k.cfg.CID,
		TID:            req.Proof.TID,
		PartnerOrderID: strconv.FormatInt(req.Order.ID, 10),
		PartnerUserID:  req.Order.SessionKey,
		PGToken:        req.Proof.PGToken,
	}

	var out kakaoApproveResponse
	raw, err := k.post(ctx, model.PaymentOpApprove, "/online/v1/payment/approve", body, &out)
	k.t.outcome(model.PaymentOpApprove, err)
	if err != nil {
		return payment.ApproveResult{}, err
	}

	res := payment.ApproveResult{
		Success:    codeString(out.ErrorCode) == "",
		ExternalID: out.AID,
		PaidAmount: out.Amount.Total,
		PayMethod:  out.PaymentMethodType,
		Raw:        raw,
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", out.ApprovedAt, model.KST); err == nil {
		res.ApprovedAt = t
	}
	return res, nil
}

// 取消（部分取消も同じ）
func (k *KakaoPay) Cancel(ctx context.Context, req payment.CancelRequest) (payment.CancelResult, error) {
	if req.Order.PaymentKey == nil || *req.Order.PaymentKey == "" {
		return payment.CancelResult{}, apperr.Validation("order has no kakaopay tid")
	}
	body := kakaoCancelRequest{
		CID:          k.cfg.CID,
		TID:          *req.Order.PaymentKey,
		CancelAmount: req.Amount,
	}

	var out kakaoCancelResponse
	raw, err := k.post(ctx, model.PaymentOpCancel, "/online/v1/payment/cancel", body, &out)
	k.t.outcome(model.PaymentOpCancel, err)
	if err != nil {
		if apperr.IsKind(err, apperr.KindGatewayIdempotentReplay) {
			return payment.CancelResult{ExternalID: *req.Order.PaymentKey, CanceledAmount: req.Amount, Replayed: true}, nil
		}
		return payment.CancelResult{}, err
	}

	return payment.CancelResult{
		ExternalID:      out.AID,
		CanceledAmount:  out.ApprovedCancelAmount.Total,
		RemainingAmount: out.CancelAvailableAmount.Total,
		Raw:             raw,
	}, nil
}

func (k *KakaoPay) post(ctx context.Context, op model.PaymentOperation, path string, body any, out any) (json.RawMessage, error) {
	if k.cfg.SecretKey == "" {
		return nil, apperr.New(apperr.KindGatewayAuth, "kakaopay secret key is not configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Internal("encode kakaopay request", err)
	}

	header := http.Header{}
	header.Set("Authorization", "SECRET_KEY "+k.cfg.SecretKey)

	resp, err := k.t.send(ctx, outbound{
		op:          op,
		url:         strings.TrimRight(k.cfg.BaseURL, "/") + path,
		header:      header,
		body:        payload,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	if resp.status != http.StatusOK {
		var ke kakaoError
		ok, text := decodeLenient(resp.body, &ke)
		if ok {
			msg := ke.ErrorMessage
			if ke.Extras.MethodResultMessage != "" {
				msg = ke.Extras.MethodResultMessage
			}
			return nil, classify(resp.status, codeString(ke.ErrorCode), msg)
		}
		return nil, classify(resp.status, "", text)
	}

	if ok, text := decodeLenient(resp.body, out); !ok {
		return nil, apperr.Wrap(apperr.KindGatewayUnavailable, "unreadable kakaopay response", fmt.Errorf("%s", text))
	}
	return json.RawMessage(resp.body), nil
}

func (k *KakaoPay) redirect(result, orderID string) string {
	return fmt.Sprintf("%s/payment/kakao/%s?orderId=%s", strings.TrimRight(k.urls.FrontendBase, "/"), result, orderID)
}
