package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cafe/internal/auth"
	"cafe/internal/chat"
	"cafe/internal/config"
	"cafe/internal/domain/model"
	"cafe/internal/event"
	"cafe/internal/handler"
	"cafe/internal/infra/cache"
	"cafe/internal/infra/db"
	"cafe/internal/infra/llm"
	"cafe/internal/infra/payment"
	"cafe/internal/infra/relay"
	infraRepo "cafe/internal/infra/repository"
	"cafe/internal/keylock"
	"cafe/internal/logger"
	"cafe/internal/metrics"
	"cafe/internal/middleware"
	"cafe/internal/realtime"
	"cafe/internal/server"
	"cafe/internal/usecase"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//DB接続
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db pool: %w", err)
	}
	defer sqlDB.Close()
	if cfg.GoEnv == "dev" {
		if err := db.Migrate(gdb); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	m := metrics.New()
	bus := event.NewBus(cfg.Bus.MailboxSize, log, m)
	locks := keylock.New()
	clock := usecase.SystemClock()
	verifier := auth.NewVerifier(cfg.JWTSecret)

	//Repository（GORM実装）
	repos := infraRepo.NewRepos(gdb)
	txm := infraRepo.NewTxManagerGorm(gdb)

	//メニューキャッシュ（REDIS_ADDRがあればredis）
	var store cache.Store = cache.NewMemoryStore()
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		store = cache.NewRedisStore(rdb)
	}
	catalog := cache.NewMenuCatalog(repos.Menus(), store, cfg.Cache.MenuTTL, log.Named("cache"))

	//決済事業者
	urls := payment.URLs{FrontendBase: cfg.FEURL, CallbackBase: cfg.Payment.CallbackBaseURL}
	timeouts := payment.Timeouts{
		Prepare: cfg.Payment.PrepareTimeout,
		Approve: cfg.Payment.ApproveTimeout,
		Cancel:  cfg.Payment.CancelTimeout,
	}
	httpClient := &http.Client{}
	gateways := usecase.Gateways{
		model.PaymentMethodKakao: payment.NewKakaoPay(cfg.Kakao, urls, timeouts, httpClient, log, m),
		model.PaymentMethodNaver: payment.NewNaverPay(cfg.Naver, urls, timeouts, httpClient, log, m),
	}

	//Usecase
	pricing := usecase.NewPricingService(repos.Menus())
	adminOrders := usecase.NewAdminOrderUsecase(txm, repos, gateways, bus, locks, clock, usecase.UUIDGen(), log.Named("orders"))
	payments := usecase.NewPaymentUsecase(txm, repos, pricing, gateways, adminOrders, bus, locks, clock, usecase.UUIDGen(),
		usecase.PaymentOptions{DedupeWindow: cfg.Payment.DedupeWindow}, log.Named("payments"))
	carts := usecase.NewCartUsecase(txm, catalog, locks)
	orders := usecase.NewOrderUsecase(repos.Orders())
	menus := usecase.NewMenuUsecase(catalog, repos.AuditLogs(), clock)

	//チャット
	prompts, err := chat.LoadPrompts()
	if err != nil {
		return err
	}
	llmClient := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, log.Named("llm"))
	history := chat.NewHistory(0, 0, 0)
	engine := chat.NewEngine(chat.ClientLLM{Client: llmClient}, catalog, history, prompts, m, log)

	//リアルタイム
	hub := realtime.NewHub(cfg.Bus.MailboxSize, log, m)
	dash := realtime.NewDashboard(infraRepo.NewSalesSQLReader(sqlDB), repos.Orders(), time.Now)
	rtOpts := realtime.Options{}

	//Handler
	h := server.Handlers{
		Cart:       handler.NewCartHandler(carts),
		Payment:    handler.NewPaymentHandler(payments, adminOrders, verifier, cfg.FEURL),
		Order:      handler.NewOrderHandler(orders),
		Menu:       handler.NewMenuHandler(menus),
		AdminMenu:  handler.NewAdminMenuHandler(menus),
		AdminOrder: handler.NewAdminOrderHandler(adminOrders),
		Chat:       handler.NewChatHandler(engine),
		WS:         realtime.NewWSServer(hub, dash, verifier, cfg.FEURL, rtOpts, log),
		SSE:        realtime.NewSSEServer(hub, verifier, middleware.TokenFromRequest, rtOpts, log),
		Health:     sqlDB.PingContext,
	}
	e := server.New(h, verifier, server.Options{
		AllowOrigins: []string{cfg.FEURL},
		ChatRate:     rate.Limit(0.5),
		ChatBurst:    5,
	}, log, m)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx, bus.Subscribe("realtime"))
		return nil
	})

	// 外部ブローカーへの転送（任意）
	sink, err := newSink(cfg.Relay)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		fw := relay.NewForwarder(bus.Subscribe("relay"), sink, log.Named("relay"))
		g.Go(func() error {
			fw.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		sweep(gctx, time.Minute, func(ctx context.Context) {
			n, err := payments.ExpirePendingOrders(ctx, cfg.Payment.PendingTTL)
			if err != nil {
				log.Error("expire pending orders failed", zap.Error(err))
				return
			}
			if n > 0 {
				log.Info("expired pending orders", zap.Int("count", n))
			}
			history.Sweep()
		})
		return nil
	})

	g.Go(func() error {
		return server.Start(gctx, e, ":"+cfg.Port, log)
	})

	return g.Wait()
}

// interval ごとに fn を呼ぶ
func sweep(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}

func newSink(cfg config.RelayConfig) (relay.Sink, error) {
	switch cfg.Kind {
	case "kafka":
		return relay.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "amqp":
		s, err := relay.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("amqp: %w", err)
		}
		return s, nil
	default:
		return nil, nil
	}
}
