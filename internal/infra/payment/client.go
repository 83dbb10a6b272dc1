// Package payment はKakaoPay/NaverPayのHTTPアダプタ。
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/logger"
	"cafe/internal/metrics"

	"go.uber.org/zap"
)

// ログに出さないヘッダ
var secretHeaders = map[string]bool{
	"Authorization":         true,
	"X-Naver-Client-Secret": true,
}

// URLs は決済後に戻すURL
type URLs struct {
	FrontendBase string // KakaoPay approval/cancel/fail の戻り先
	CallbackBase string // NaverPay returnUrl（このAPI）
}

type Timeouts struct {
	Prepare time.Duration
	Approve time.Duration
	Cancel  time.Duration
}

func (t Timeouts) of(op model.PaymentOperation) time.Duration {
	switch op {
	case model.PaymentOpPrepare:
		if t.Prepare > 0 {
			return t.Prepare
		}
		return 30 * time.Second
	default:
		d := t.Approve
		if op == model.PaymentOpCancel {
			d = t.Cancel
		}
		if d > 0 {
			return d
		}
		return 60 * time.Second
	}
}

// 事業者ごとのHTTP呼び出しの共通部分
type transport struct {
	method   model.PaymentMethod
	client   *http.Client
	timeouts Timeouts
	log      *zap.Logger
	metrics  *metrics.Metrics
}

type outbound struct {
	op          model.PaymentOperation
	url         string
	header      http.Header
	body        []byte
	contentType string
}

type inbound struct {
	status int
	body   []byte
}

// send は1回だけ送る。通信エラー・タイムアウトは GatewayUnavailable。
func (t *transport) send(ctx context.Context, req outbound) (inbound, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeouts.of(req.op))
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.url, bytes.NewReader(req.body))
	if err != nil {
		return inbound{}, apperr.Internal("build gateway request", err)
	}
	for k, vs := range req.header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Content-Type", req.contentType)

	t.log.Info("payment gateway request",
		zap.String("method", string(t.method)),
		zap.String("operation", string(req.op)),
		zap.String("url", req.url),
		zap.Any("headers", redactHeaders(hreq.Header)),
		zap.ByteString("payload", req.body),
	)

	started := time.Now()
	resp, err := t.client.Do(hreq)
	if err != nil {
		t.metrics.GatewayCall(string(t.method), string(req.op), "unavailable")
		t.log.Warn("payment gateway unreachable",
			zap.String("method", string(t.method)),
			zap.String("operation", string(req.op)),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		msg := "payment gateway unreachable"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "payment gateway timeout"
		}
		return inbound{}, apperr.Wrap(apperr.KindGatewayUnavailable, msg, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		t.metrics.GatewayCall(string(t.method), string(req.op), "unavailable")
		return inbound{}, apperr.Wrap(apperr.KindGatewayUnavailable, "read gateway response", err)
	}

	t.log.Info("payment gateway response",
		zap.String("method", string(t.method)),
		zap.String("operation", string(req.op)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
		zap.ByteString("body", body),
	)
	return inbound{status: resp.StatusCode, body: body}, nil
}

// HTTPステータスと事業者のコードからエラー種別を決める
func classify(status int, code, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.WithCode(apperr.KindGatewayAuth, code, "payment gateway authentication failed", errors.New(msg))
	case status == http.StatusConflict:
		return apperr.WithCode(apperr.KindGatewayIdempotentReplay, code, "payment request already processed", errors.New(msg))
	case status >= 500 || status == http.StatusTooManyRequests:
		return apperr.WithCode(apperr.KindGatewayUnavailable, code, "payment gateway unavailable", errors.New(msg))
	default:
		return apperr.WithCode(apperr.KindGatewayRejected, code, msg, nil)
	}
}

func (t *transport) outcome(op model.PaymentOperation, err error) {
	if err == nil {
		t.metrics.GatewayCall(string(t.method), string(op), "success")
		return
	}
	t.metrics.GatewayCall(string(t.method), string(op), string(apperr.KindOf(err)))
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		v := h.Get(k)
		if secretHeaders[http.CanonicalHeaderKey(k)] {
			v = logger.Redact(v)
		}
		out[k] = v
	}
	return out
}

// JSONでないエラー本文も受け付ける。読めなければ本文の先頭を返す。
func decodeLenient(body []byte, v any) (ok bool, text string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if err := json.Unmarshal(trimmed, v); err == nil {
			return true, ""
		}
	}
	text = strings.TrimSpace(string(trimmed))
	if len(text) > 200 {
		text = text[:200]
	}
	return false, text
}

// error_code は数値でも文字列でも来る
func codeString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return fmt.Sprintf("%d", int64(c))
	default:
		return fmt.Sprint(c)
	}
}
