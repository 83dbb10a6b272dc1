package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの分類。HTTPステータスへの対応はStatusで決まる。
type Kind string

const (
	KindValidation              Kind = "validation"
	KindUnauthorized            Kind = "unauthorized"
	KindForbidden               Kind = "forbidden"
	KindNotFound                Kind = "not_found"
	KindConflict                Kind = "conflict"
	KindRateLimited             Kind = "rate_limited"
	KindInternal                Kind = "internal"
	KindGatewayAuth             Kind = "gateway_auth"
	KindGatewayRejected         Kind = "gateway_rejected"
	KindGatewayVerify           Kind = "gateway_verify"
	KindGatewayUnavailable      Kind = "gateway_unavailable"
	KindGatewayIdempotentReplay Kind = "gateway_idempotent_replay"
	KindLLMUnavailable          Kind = "llm_unavailable"
)

// Error はusecase/infraからhandlerまで運ぶエラー。
// Code は決済事業者のエラーコードなど、クライアントへ返してよい補足。
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status はKindに対応するHTTPステータス。
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindGatewayRejected, KindGatewayVerify:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindGatewayIdempotentReplay:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindGatewayUnavailable, KindLLMUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithCode は事業者コード付きで作る
func WithCode(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func Validation(msg string) *Error { return New(KindValidation, msg) }
func NotFound(msg string) *Error   { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error  { return New(KindForbidden, msg) }
func Conflict(msg string) *Error   { return New(KindConflict, msg) }

// Internal はDBエラーなど。原因はログ用に保持する。
func Internal(msg string, err error) *Error { return Wrap(KindInternal, msg, err) }

// As はerrチェーンから*Errorを取り出す。
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf はerrのKind。*Errorでなければ KindInternal。
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
