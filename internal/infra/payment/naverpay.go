package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cafe/internal/apperr"
	"cafe/internal/config"
	"cafe/internal/domain/model"
	"cafe/internal/domain/payment"
	"cafe/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const naverSuccess = "Success"

// NaverPay は決済ウィンドウ方式（SDKで認証→サーバで承認）
type NaverPay struct {
	cfg  config.NaverConfig
	urls URLs
	t    *transport
}

// DI
func NewNaverPay(cfg config.NaverConfig, urls URLs, timeouts Timeouts, client *http.Client, log *zap.Logger, m *metrics.Metrics) *NaverPay {
	if client == nil {
		client = &http.Client{}
	}
	return &NaverPay{
		cfg:  cfg,
		urls: urls,
		t: &transport{
			method:   model.PaymentMethodNaver,
			client:   client,
			timeouts: timeouts,
			log:      log.Named("naverpay"),
			metrics:  m,
		},
	}
}

func (n *NaverPay) Method() model.PaymentMethod { return model.PaymentMethodNaver }

type naverEnvelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Body    json.RawMessage `json:"body"`
}

type naverApproveBody struct {
	PaymentID string `json:"paymentId"`
	Detail    struct {
		PaymentID       string `json:"paymentId"`
		PayHistID       string `json:"payHistId"`
		MerchantPayKey  string `json:"merchantPayKey"`
		AdmissionState  string `json:"admissionState"`
		AdmissionYmdt   string `json:"admissionYmdt"`
		TotalPayAmount  int64  `json:"totalPayAmount"`
		PrimaryPayMeans string `json:"primaryPayMeans"`
	} `json:"detail"`
}

type naverCancelBody struct {
	PaymentID              string `json:"paymentId"`
	PayHistID              string `json:"payHistId"`
	PrimaryPayCancelAmount int64  `json:"primaryPayCancelAmount"`
	TotalRestAmount        int64  `json:"totalRestAmount"`
}

// SDKに渡す値を作るだけ（事業者APIは呼ばない）
func (n *NaverPay) Prepare(ctx context.Context, req payment.PrepareRequest) (payment.PrepareResult, error) {
	orderID := strconv.FormatInt(req.Order.ID, 10)
	n.t.outcome(model.PaymentOpPrepare, nil)
	return payment.PrepareResult{
		SDK: &payment.SDKParams{
			Mode:             n.cfg.Mode,
			ClientID:         n.cfg.ClientID,
			ChainID:          n.cfg.ChainID,
			MerchantPayKey:   orderID,
			MerchantUserKey:  req.Order.SessionKey,
			ProductName:      req.ItemName,
			ProductCount:     req.Quantity,
			TotalPayAmount:   req.Order.TotalAmount,
			TaxScopeAmount:   req.Order.TotalAmount,
			TaxExScopeAmount: 0,
			ReturnURL: fmt.Sprintf("%s/api/payments/naver/callback?merchantPayId=%s",
				strings.TrimRight(n.urls.CallbackBase, "/"), orderID),
		},
	}, nil
}

// 承認。code=Success かつ admissionState=SUCCESS を成功とする。
func (n *NaverPay) Approve(ctx context.Context, req payment.ApproveRequest) (payment.ApproveResult, error) {
	form := url.Values{}
	form.Set("paymentId", req.Proof.PaymentID)

	env, err := n.post(ctx, model.PaymentOpApprove, "/naverpay/payments/v2.2/apply/payment", form, req.IdempotencyKey)
	n.t.outcome(model.PaymentOpApprove, err)
	if err != nil {
		return payment.ApproveResult{}, err
	}

	var body naverApproveBody
	_ = json.Unmarshal(env.Body, &body)

	res := payment.ApproveResult{
		Success:    env.Code == naverSuccess && body.Detail.AdmissionState == "SUCCESS",
		ExternalID: firstNonEmpty(body.Detail.PaymentID, body.PaymentID, req.Proof.PaymentID),
		PaidAmount: body.Detail.TotalPayAmount,
		PayMethod:  body.Detail.PrimaryPayMeans,
		Raw:        env.Body,
	}
	if t, err := time.ParseInLocation("20060102150405", body.Detail.AdmissionYmdt, model.KST); err == nil {
		res.ApprovedAt = t
	}
	return res, nil
}

// 取消（部分取消も同じ）。409は受付済みとして扱う。
func (n *NaverPay) Cancel(ctx context.Context, req payment.CancelRequest) (payment.CancelResult, error) {
	if req.Order.PaymentKey == nil || *req.Order.PaymentKey == "" {
		return payment.CancelResult{}, apperr.Validation("order has no naverpay paymentId")
	}
	reason := req.Reason
	if reason == "" {
		reason = "주문 취소"
	}
	amount := strconv.FormatInt(req.Amount, 10)

	form := url.Values{}
	form.Set("paymentId", *req.Order.PaymentKey)
	form.Set("cancelAmount", amount)
	form.Set("cancelReason", reason)
	form.Set("cancelRequester", "2")
	form.Set("taxScopeAmount", amount)
	form.Set("taxExScopeAmount", "0")

	env, err := n.post(ctx, model.PaymentOpCancel, "/naverpay/payments/v1/cancel", form, req.IdempotencyKey)
	n.t.outcome(model.PaymentOpCancel, err)
	if err != nil {
		if apperr.IsKind(err, apperr.KindGatewayIdempotentReplay) {
			return payment.CancelResult{ExternalID: *req.Order.PaymentKey, CanceledAmount: req.Amount, Replayed: true}, nil
		}
		return payment.CancelResult{}, err
	}

	var body naverCancelBody
	_ = json.Unmarshal(env.Body, &body)
	return payment.CancelResult{
		ExternalID:      firstNonEmpty(body.PayHistID, body.PaymentID),
		CanceledAmount:  body.PrimaryPayCancelAmount,
		RemainingAmount: body.TotalRestAmount,
		Raw:             env.Body,
	}, nil
}

func (n *NaverPay) post(ctx context.Context, op model.PaymentOperation, path string, form url.Values, idemKey string) (naverEnvelope, error) {
	if n.cfg.ClientID == "" || n.cfg.ClientSecret == "" {
		return naverEnvelope{}, apperr.New(apperr.KindGatewayAuth, "naverpay credentials are not configured")
	}
	if idemKey == "" {
		idemKey = uuid.NewString()
	}

	header := http.Header{}
	header.Set("X-Naver-Client-Id", n.cfg.ClientID)
	header.Set("X-Naver-Client-Secret", n.cfg.ClientSecret)
	header.Set("X-NaverPay-Chain-Id", n.cfg.ChainID)
	header.Set("X-NaverPay-Idempotency-Key", idemKey)

	resp, err := n.t.send(ctx, outbound{
		op:          op,
		url:         fmt.Sprintf("%s/%s%s", strings.TrimRight(n.cfg.BaseURL, "/"), n.cfg.PartnerID, path),
		header:      header,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return naverEnvelope{}, err
	}

	var env naverEnvelope
	ok, text := decodeLenient(resp.body, &env)
	if resp.status != http.StatusOK {
		if ok {
			return naverEnvelope{}, classify(resp.status, env.Code, env.Message)
		}
		return naverEnvelope{}, classify(resp.status, "", text)
	}
	if !ok {
		return naverEnvelope{}, apperr.Wrap(apperr.KindGatewayUnavailable, "unreadable naverpay response", fmt.Errorf("%s", text))
	}
	if env.Code != naverSuccess {
		return naverEnvelope{}, classify(http.StatusBadRequest, env.Code, env.Message)
	}
	return env, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
