package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"cafe/internal/auth"
	"cafe/internal/chat"
	"cafe/internal/domain/model"
	"cafe/internal/domain/payment"
	"cafe/internal/event"
	"cafe/internal/infra/cache"
	"cafe/internal/infra/db/dbtest"
	"cafe/internal/infra/llm"
	gormrepo "cafe/internal/infra/repository"
	"cafe/internal/keylock"
	"cafe/internal/middleware"
	"cafe/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const feURL = "http://fe.test"

// stubGateway は常に成功する事業者
type stubGateway struct {
	method model.PaymentMethod
}

func (g stubGateway) Method() model.PaymentMethod { return g.method }

func (g stubGateway) Prepare(_ context.Context, req payment.PrepareRequest) (payment.PrepareResult, error) {
	if g.method == model.PaymentMethodNaver {
		return payment.PrepareResult{SDK: &payment.SDKParams{
			MerchantPayKey: fmt.Sprint(req.Order.ID),
			TotalPayAmount: req.Order.TotalAmount,
		}}, nil
	}
	return payment.PrepareResult{TID: fmt.Sprintf("T%d", req.Order.ID), NextRedirectPCURL: "https://pay.test/pc"}, nil
}

func (g stubGateway) Approve(_ context.Context, req payment.ApproveRequest) (payment.ApproveResult, error) {
	ext := req.Proof.PaymentID
	if ext == "" {
		ext = "A" + req.Proof.TID
	}
	return payment.ApproveResult{Success: true, ExternalID: ext, PaidAmount: req.Order.TotalAmount, ApprovedAt: time.Now()}, nil
}

func (g stubGateway) Cancel(_ context.Context, req payment.CancelRequest) (payment.CancelResult, error) {
	return payment.CancelResult{ExternalID: "C1", CanceledAmount: req.Amount}, nil
}

type replyLLM struct{ intent, answer string }

func (l replyLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	if req.MaxTokens <= 10 {
		return l.intent, nil
	}
	return l.answer, nil
}

func (l replyLLM) Stream(context.Context, llm.Request) (chat.TokenStream, error) {
	return &sliceStream{tokens: strings.SplitAfter(l.answer, " ")}, nil
}

type sliceStream struct{ tokens []string }

func (s *sliceStream) Recv() (string, error) {
	if len(s.tokens) == 0 {
		return "", io.EOF
	}
	t := s.tokens[0]
	s.tokens = s.tokens[1:]
	return t, nil
}

func (s *sliceStream) Close() error { return nil }

type testAPI struct {
	e      *echo.Echo
	v      *auth.Verifier
	menus  []model.Menu
	admin  string
	bus    *event.Bus
	events *event.Subscription
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gdb := dbtest.New(t)
	menus := dbtest.SeedMenus(t, gdb, dbtest.DefaultMenus()...)

	log := zap.NewNop()
	repos := gormrepo.NewRepos(gdb)
	txm := gormrepo.NewTxManagerGorm(gdb)
	bus := event.NewBus(16, log, nil)
	locks := keylock.New()
	clock := usecase.SystemClock()
	gateways := usecase.Gateways{
		model.PaymentMethodKakao: stubGateway{method: model.PaymentMethodKakao},
		model.PaymentMethodNaver: stubGateway{method: model.PaymentMethodNaver},
	}
	catalog := cache.NewMenuCatalog(repos.Menus(), cache.NewMemoryStore(), time.Minute, log)

	adminUC := usecase.NewAdminOrderUsecase(txm, repos, gateways, bus, locks, clock, usecase.UUIDGen(), log)
	payUC := usecase.NewPaymentUsecase(txm, repos, usecase.NewPricingService(repos.Menus()), gateways, adminUC, bus, locks, clock, usecase.UUIDGen(), usecase.PaymentOptions{}, log)
	menuUC := usecase.NewMenuUsecase(catalog, repos.AuditLogs(), clock)

	prompts, err := chat.LoadPrompts()
	require.NoError(t, err)
	engine := chat.NewEngine(replyLLM{intent: "menu_recommendation", answer: "카페라떼를 추천해요. 부드러워요."}, catalog, nil, prompts, nil, log)

	v := auth.NewVerifier("test-secret")
	adminTok, err := v.Issue(1, auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	e := echo.New()
	NewCartHandler(usecase.NewCartUsecase(txm, catalog, locks)).RegisterRoutes(e)
	NewPaymentHandler(payUC, adminUC, v, feURL).RegisterRoutes(e)
	NewOrderHandler(usecase.NewOrderUsecase(repos.Orders())).RegisterRoutes(e)
	NewMenuHandler(menuUC).RegisterRoutes(e)
	NewAdminMenuHandler(menuUC).RegisterRoutes(e, v)
	NewAdminOrderHandler(adminUC).RegisterRoutes(e, v)
	NewChatHandler(engine).RegisterRoutes(e, nil)

	return &testAPI{e: e, v: v, menus: menus, admin: adminTok, bus: bus, events: bus.Subscribe("test")}
}

type call struct {
	method  string
	path    string
	body    any
	session string
	token   string
}

func (a *testAPI) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(c.method, c.path, r)
	if c.body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.session != "" {
		req.Header.Set(middleware.SessionHeader, c.session)
	}
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCart_MintsSessionAndTotals(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, call{method: http.MethodPost, path: "/api/cart/items", body: map[string]any{"menuId": api.menus[0].ID, "quantity": 2}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := rec.Header().Get(middleware.SessionHeader)
	require.NotEmpty(t, session)

	rec = api.do(t, call{method: http.MethodGet, path: "/api/cart", session: session})
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[usecase.CartView](t, rec)
	assert.Equal(t, int64(9000), cart.Total)
	require.Len(t, cart.Items, 1)

	rec = api.do(t, call{method: http.MethodPut, path: fmt.Sprintf("/api/cart/items/%d", cart.Items[0].ID), body: map[string]any{"quantity": 3}, session: session})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(13500), decode[usecase.CartView](t, rec).Total)

	rec = api.do(t, call{method: http.MethodDelete, path: "/api/cart", session: session})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[usecase.CartView](t, rec).Items)
}

func TestErrorEnvelope(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, call{method: http.MethodPost, path: "/api/cart/items", body: map[string]any{"menuId": api.menus[0].ID, "quantity": 0}, session: "s1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode[ErrorResponse](t, rec).Detail)

	rec = api.do(t, call{method: http.MethodGet, path: "/api/orders/999", session: "s1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 注文系はセッション必須
	rec = api.do(t, call{method: http.MethodPost, path: "/api/payments/order", body: map[string]any{"paymentMethod": "kakao"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKakaoFlow(t *testing.T) {
	api := newTestAPI(t)
	session := "s1"

	rec := api.do(t, call{method: http.MethodPost, path: "/api/payments/order", session: session, body: map[string]any{
		"paymentMethod": "kakao",
		"totalAmount":   9000,
		"items":         []map[string]any{{"menuId": api.menus[0].ID, "quantity": 2}},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[usecase.CreateOrderOutput](t, rec)
	assert.Equal(t, int64(9000), created.TotalAmount)

	rec = api.do(t, call{method: http.MethodPost, path: "/api/payments/kakao", session: session, body: map[string]any{"orderId": created.OrderID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prep := decode[usecase.PrepareKakaoOutput](t, rec)
	assert.Equal(t, fmt.Sprintf("T%d", created.OrderID), prep.TID)

	// 他人のセッションでは承認できない
	q := url.Values{"orderId": {fmt.Sprint(created.OrderID)}, "tid": {prep.TID}, "pgToken": {"P"}}
	rec = api.do(t, call{method: http.MethodPost, path: "/api/payments/kakao/complete?" + q.Encode(), session: "other"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, call{method: http.MethodPost, path: "/api/payments/kakao/complete?" + q.Encode(), session: session})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decode[map[string]any](t, rec)
	assert.Equal(t, "paid", paid["status"])
	assert.Regexp(t, `^\d{8}-001$`, paid["orderNumber"])

	rec = api.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/orders/%d", created.OrderID), session: session})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/orders/%d/qrcode", created.OrderID), session: session})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	var kinds []event.Kind
	for len(kinds) < 2 {
		select {
		case ev := <-api.events.C():
			kinds = append(kinds, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("events: got %v", kinds)
		}
	}
	assert.Equal(t, []event.Kind{event.OrderCreated, event.OrderPaid}, kinds)
}

func TestNaverCallbackRedirects(t *testing.T) {
	api := newTestAPI(t)
	session := "s-naver"

	rec := api.do(t, call{method: http.MethodPost, path: "/api/payments/naver/prepare", session: session, body: map[string]any{
		"totalAmount": 5000,
		"items":       []map[string]any{{"menuId": api.menus[1].ID, "quantity": 1}},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prep := decode[usecase.PrepareNaverOutput](t, rec)

	fail := url.Values{"resultCode": {"UserCancel"}, "merchantPayId": {fmt.Sprint(prep.OrderID)}}
	rec = api.do(t, call{method: http.MethodGet, path: "/api/payments/naver/callback?" + fail.Encode()})
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "/payment/fail", loc.Path)
	assert.Equal(t, "UserCancel", loc.Query().Get("code"))

	ok := url.Values{"resultCode": {"Success"}, "paymentId": {"NP-1"}, "merchantPayId": {fmt.Sprint(prep.OrderID)}}
	rec = api.do(t, call{method: http.MethodGet, path: "/api/payments/naver/callback?" + ok.Encode()})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, fmt.Sprintf("%s/payment/success?orderId=%d", feURL, prep.OrderID), rec.Header().Get(echo.HeaderLocation))

	// 顧客の全額取消
	rec = api.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/payments/naver/cancel/%d", prep.OrderID), session: session})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode[map[string]any](t, rec)["status"])
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	session := "s-admin"

	rec := api.do(t, call{method: http.MethodPost, path: "/api/payments/order", session: session, body: map[string]any{
		"paymentMethod": "kakao",
		"items":         []map[string]any{{"menuId": api.menus[2].ID, "quantity": 1}},
	}})
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := decode[usecase.CreateOrderOutput](t, rec).OrderID
	statusPath := fmt.Sprintf("/api/admin/orders/%d/status", orderID)

	rec = api.do(t, call{method: http.MethodPut, path: statusPath, body: map[string]any{"status": "cancelled"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	user, err := api.v.Issue(2, "USER", time.Hour)
	require.NoError(t, err)
	rec = api.do(t, call{method: http.MethodPut, path: statusPath, body: map[string]any{"status": "cancelled"}, token: user})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// pending → completed は不可
	rec = api.do(t, call{method: http.MethodPut, path: statusPath, body: map[string]any{"status": "completed"}, token: api.admin})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, call{method: http.MethodPut, path: statusPath, body: map[string]any{"status": "cancelled"}, token: api.admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode[map[string]any](t, rec)["status"])

	rec = api.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/admin/orders/%d/audit-logs", orderID), token: api.admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]model.AuditLog](t, rec))

	rec = api.do(t, call{method: http.MethodGet, path: "/api/admin/orders?status=cancelled", token: api.admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[usecase.AdminOrderList](t, rec).Total)

	// 返金も管理者だけ
	rec = api.do(t, call{method: http.MethodPost, path: "/api/payments/refund", body: map[string]any{"orderId": orderID, "reason": "x"}, session: session})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMenus(t *testing.T) {
	api := newTestAPI(t)

	path := fmt.Sprintf("/api/admin/menus/%d/availability", api.menus[0].ID)
	rec := api.do(t, call{method: http.MethodPatch, path: path, body: map[string]any{}, token: api.admin})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, call{method: http.MethodPatch, path: path, body: map[string]any{"isAvailable": false}, token: api.admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, call{method: http.MethodGet, path: "/api/menus?available=true"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Menu](t, rec), 2)

	rec = api.do(t, call{method: http.MethodGet, path: "/api/menus?category=dessert"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Menu](t, rec), 1)

	rec = api.do(t, call{method: http.MethodGet, path: "/api/menus?available=maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, call{method: http.MethodPost, path: "/api/chat/", body: map[string]any{"message": "추천해줘"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[chat.Response](t, rec)
	assert.Equal(t, []string{"카페라떼를 추천해요.", "부드러워요."}, res.Sentences)
	assert.Equal(t, []int64{api.menus[1].ID}, res.RecommendedIDs)
	assert.NotEmpty(t, res.SessionID)

	rec = api.do(t, call{method: http.MethodPost, path: "/api/chat/", body: map[string]any{"message": ""}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, call{method: http.MethodPost, path: "/api/chat/stream", body: map[string]any{"message": "추천해줘", "sessionId": "c1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	var frames []map[string]any
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var f map[string]any
			require.NoError(t, json.Unmarshal([]byte(data), &f))
			frames = append(frames, f)
		}
	}
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, true, last["finished"])
	assert.Equal(t, "c1", last["sessionId"])
	assert.Equal(t, false, frames[0]["finished"])
	assert.NotEmpty(t, frames[0]["token"])
}
