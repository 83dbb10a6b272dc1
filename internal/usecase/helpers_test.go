package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cafe/internal/domain/model"
	"cafe/internal/domain/payment"
	"cafe/internal/event"
	"cafe/internal/infra/cache"
	"cafe/internal/infra/db/dbtest"
	gormrepo "cafe/internal/infra/repository"
	"cafe/internal/keylock"
	repo "cafe/internal/repository"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =====================
// clock / id
// =====================

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock { return &fixedClock{now: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func seqKeys() IDGen {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("key-%d", n.Add(1)) }
}

// =====================
// gateway mock
// =====================

type GatewayMock struct {
	mock.Mock
	method model.PaymentMethod
}

func (m *GatewayMock) Method() model.PaymentMethod { return m.method }

func (m *GatewayMock) Prepare(ctx context.Context, req payment.PrepareRequest) (payment.PrepareResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(payment.PrepareResult)
	return res, args.Error(1)
}

func (m *GatewayMock) Approve(ctx context.Context, req payment.ApproveRequest) (payment.ApproveResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(payment.ApproveResult)
	return res, args.Error(1)
}

func (m *GatewayMock) Cancel(ctx context.Context, req payment.CancelRequest) (payment.CancelResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(payment.CancelResult)
	return res, args.Error(1)
}

// 金額だけ見る
func cancelOf(amount int64) any {
	return mock.MatchedBy(func(req payment.CancelRequest) bool { return req.Amount == amount })
}

// =====================
// publisher
// =====================

type recordingBus struct {
	mu     sync.Mutex
	events []event.Event
}

func (b *recordingBus) Publish(e event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) kinds() []event.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.Kind, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Kind)
	}
	return out
}

func (b *recordingBus) last() event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

// =====================
// TxManager spy
// =====================

// TxManagerSpy は本物のTxに流しつつ呼び出し回数を記録する
type TxManagerSpy struct {
	mock.Mock
	inner repo.TransactionManager
}

func (m *TxManagerSpy) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Called(ctx)
	return m.inner.WithinTx(ctx, fn)
}

// =====================
// fixture
// =====================

var (
	customer = model.Actor{Type: model.ActorCustomer, ID: "sess-1"}
	admin    = model.Actor{Type: model.ActorAdmin, ID: "1"}
)

type fixture struct {
	db    *gorm.DB
	repos repo.TxRepos
	tx    *TxManagerSpy
	clock *fixedClock
	bus   *recordingBus
	kakao *GatewayMock
	naver *GatewayMock
	menus []model.Menu

	catalog  *cache.MenuCatalog
	pricing  *PricingService
	carts    *CartUsecase
	admin    *AdminOrderUsecase
	payments *PaymentUsecase
	orders   *OrderUsecase
}

// 2025-06-15 10:00 KST
var testNow = time.Date(2025, 6, 15, 1, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, menus ...model.Menu) *fixture {
	t.Helper()
	if len(menus) == 0 {
		menus = dbtest.DefaultMenus()
	}
	gdb := dbtest.New(t)
	f := &fixture{
		db:    gdb,
		repos: gormrepo.NewRepos(gdb),
		tx:    &TxManagerSpy{inner: gormrepo.NewTxManagerGorm(gdb)},
		clock: newFixedClock(testNow),
		bus:   &recordingBus{},
		kakao: &GatewayMock{method: model.PaymentMethodKakao},
		naver: &GatewayMock{method: model.PaymentMethodNaver},
		menus: dbtest.SeedMenus(t, gdb, menus...),
	}
	f.tx.On("WithinTx", mock.Anything).Return()

	log := zap.NewNop()
	locks := keylock.New()
	gateways := Gateways{
		model.PaymentMethodKakao: f.kakao,
		model.PaymentMethodNaver: f.naver,
	}
	f.catalog = cache.NewMenuCatalog(f.repos.Menus(), cache.NewMemoryStore(), time.Minute, log)

	f.pricing = NewPricingService(f.repos.Menus())
	f.carts = NewCartUsecase(f.tx, f.catalog, locks)
	f.admin = NewAdminOrderUsecase(f.tx, f.repos, gateways, f.bus, locks, f.clock, seqKeys(), log)
	f.payments = NewPaymentUsecase(f.tx, f.repos, f.pricing, gateways, f.admin, f.bus, locks, f.clock, seqKeys(), PaymentOptions{}, log)
	f.orders = NewOrderUsecase(f.repos.Orders())
	return f
}

func (f *fixture) menuID(i int) int64 { return f.menus[i].ID }

// kakao の ready→approve を通して paid の注文を作る
func (f *fixture) paidKakaoOrder(t *testing.T, session string, lines ...PriceLine) model.Order {
	t.Helper()
	ctx := context.Background()

	out, err := f.payments.CreateOrder(ctx, session, CreateOrderInput{PaymentMethod: "kakao", Items: lines})
	require.NoError(t, err)

	tid := fmt.Sprintf("T%d", out.OrderID)
	f.kakao.On("Prepare", mock.Anything, mock.MatchedBy(func(req payment.PrepareRequest) bool {
		return req.Order.ID == out.OrderID
	})).Return(payment.PrepareResult{TID: tid}, nil).Once()
	f.kakao.On("Approve", mock.Anything, mock.MatchedBy(func(req payment.ApproveRequest) bool {
		return req.Order.ID == out.OrderID
	})).Return(payment.ApproveResult{Success: true, ExternalID: "A" + tid, PaidAmount: out.TotalAmount}, nil).Once()

	_, err = f.payments.PrepareKakao(ctx, session, PrepareKakaoInput{OrderID: out.OrderID})
	require.NoError(t, err)
	_, err = f.payments.CompleteKakao(ctx, session, CompleteKakaoInput{OrderID: out.OrderID, TID: tid, PGToken: "pg"})
	require.NoError(t, err)

	o, err := f.repos.Orders().FindByID(ctx, out.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusPaid, o.Status)
	return o
}
