package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cafe/internal/apperr"
	"cafe/internal/auth"
	"cafe/internal/middleware"
	"cafe/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /api/payments のHTTP（注文作成・KakaoPay・NaverPay・返金）
type PaymentHandler struct {
	uc     *usecase.PaymentUsecase
	admin  *usecase.AdminOrderUsecase
	feURL  string
	verify *auth.Verifier
}

// DI
func NewPaymentHandler(uc *usecase.PaymentUsecase, admin *usecase.AdminOrderUsecase, v *auth.Verifier, feURL string) *PaymentHandler {
	return &PaymentHandler{uc: uc, admin: admin, verify: v, feURL: strings.TrimRight(feURL, "/")}
}

type CreateOrderRequest struct {
	PaymentMethod string              `json:"paymentMethod"`
	TotalAmount   int64               `json:"totalAmount"`
	Items         []usecase.PriceLine `json:"items"`
}

type KakaoPrepareRequest struct {
	OrderID     int64               `json:"orderId"`
	TotalAmount int64               `json:"totalAmount"`
	Items       []usecase.PriceLine `json:"items"`
}

type NaverPrepareRequest struct {
	TotalAmount int64               `json:"totalAmount"`
	Items       []usecase.PriceLine `json:"items"`
}

type RefundRequest struct {
	OrderID      int64  `json:"orderId"`
	RefundAmount *int64 `json:"refundAmount"`
	Reason       string `json:"reason"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/payments")

	session := middleware.Session(false)
	g.POST("/order", h.createOrder, session)
	g.POST("/kakao", h.prepareKakao, session)
	g.POST("/kakao/complete", h.completeKakao)
	g.POST("/naver/prepare", h.prepareNaver, session)
	g.GET("/naver/callback", h.naverCallback)
	g.POST("/naver/cancel/:orderId", h.cancelNaver, session)

	// 返金は管理者だけ
	g.POST("/refund", h.refund, middleware.AuthJWT(h.verify), middleware.AdminRoleGuard())
}

func (h *PaymentHandler) createOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.CreateOrder(c.Request().Context(), middleware.SessionFromContext(c), usecase.CreateOrderInput{
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   req.TotalAmount,
		Items:         req.Items,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) prepareKakao(c echo.Context) error {
	var req KakaoPrepareRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.PrepareKakao(c.Request().Context(), middleware.SessionFromContext(c), usecase.PrepareKakaoInput{
		OrderID:     req.OrderID,
		TotalAmount: req.TotalAmount,
		Items:       req.Items,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// KakaoPayの承認。pg_token は approval_url のクエリで戻ってくる。
// セッションが付いていれば所有者を確認する。
func (h *PaymentHandler) completeKakao(c echo.Context) error {
	orderID, err := strconv.ParseInt(c.QueryParam("orderId"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid orderId")
	}
	pgToken := c.QueryParam("pgToken")
	if pgToken == "" {
		pgToken = c.QueryParam("pg_token")
	}

	out, err := h.uc.CompleteKakao(c.Request().Context(), middleware.PeekSession(c), usecase.CompleteKakaoInput{
		OrderID: orderID,
		TID:     c.QueryParam("tid"),
		PGToken: pgToken,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) prepareNaver(c echo.Context) error {
	var req NaverPrepareRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.PrepareNaver(c.Request().Context(), middleware.SessionFromContext(c), usecase.PrepareNaverInput{
		TotalAmount: req.TotalAmount,
		Items:       req.Items,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// NaverPay SDKの returnUrl。結果はフロントの成功/失敗ページへ302で返す。
func (h *PaymentHandler) naverCallback(c echo.Context) error {
	in := usecase.NaverCallbackInput{
		ResultCode:    c.QueryParam("resultCode"),
		PaymentID:     c.QueryParam("paymentId"),
		MerchantPayID: c.QueryParam("merchantPayId"),
		ResultMessage: c.QueryParam("resultMessage"),
	}

	out, err := h.uc.CompleteNaver(c.Request().Context(), in)
	if err != nil {
		c.Logger().Warnf("naverpay callback failed: merchantPayId=%s err=%v", in.MerchantPayID, err)
		return c.Redirect(http.StatusFound, h.failURL(in.MerchantPayID, err))
	}
	return c.Redirect(http.StatusFound, fmt.Sprintf("%s/payment/success?orderId=%d", h.feURL, out.ID))
}

func (h *PaymentHandler) failURL(orderID string, err error) string {
	q := url.Values{}
	q.Set("orderId", orderID)
	code := string(apperr.KindOf(err))
	if ae, ok := apperr.As(err); ok {
		if ae.Code != "" {
			code = ae.Code
		}
		q.Set("message", ae.Message)
	}
	q.Set("code", code)
	return h.feURL + "/payment/fail?" + q.Encode()
}

func (h *PaymentHandler) cancelNaver(c echo.Context) error {
	orderID, ok := paramID(c, "orderId")
	if !ok {
		return badRequest(c, "invalid orderId")
	}

	out, err := h.uc.CancelByCustomer(c.Request().Context(), middleware.SessionFromContext(c), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) refund(c echo.Context) error {
	actor, ok := adminActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.admin.Refund(c.Request().Context(), actor, usecase.RefundInput{
		OrderID:      req.OrderID,
		RefundAmount: req.RefundAmount,
		Reason:       req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
