package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cafe/internal/auth"
	"cafe/internal/handler"
	"cafe/internal/metrics"
	"cafe/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Options struct {
	AllowOrigins []string
	ChatRate     rate.Limit // 1秒あたり（識別子ごと）
	ChatBurst    int
}

// New はechoを組み立ててルートを登録する
func New(h Handlers, v *auth.Verifier, opts Options, log *zap.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLog(log, m))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     opts.AllowOrigins,
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, middleware.SessionHeader},
		ExposeHeaders:    []string{middleware.SessionHeader},
		AllowCredentials: true,
	}))

	RegisterRoutes(e, h, v, chatLimiter(opts), m)
	return e
}

// チャットの連投制限。セッションIDごと、無ければIPごと。
func chatLimiter(opts Options) echo.MiddlewareFunc {
	if opts.ChatRate <= 0 {
		return nil
	}
	burst := opts.ChatBurst
	if burst <= 0 {
		burst = 1
	}
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      opts.ChatRate,
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if s := middleware.PeekSession(c); s != "" {
				return "s:" + s, nil
			}
			return "ip:" + c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, handler.ErrorResponse{Detail: "too many requests"})
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return c.JSON(http.StatusBadRequest, handler.ErrorResponse{Detail: "invalid request"})
		},
	})
}

// echo.HTTPError（404/405など）も {detail} で返す
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			msg = fmt.Sprint(he.Message)
		} else {
			log.Error("unhandled error", zap.String("path", c.Request().URL.Path), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, handler.ErrorResponse{Detail: msg})
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

// Start はctxが終わるまで待ち、終わったら処理中のリクエストを待って止める
func Start(ctx context.Context, e *echo.Echo, addr string, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("server shutting down")
	return e.Shutdown(shutdownCtx)
}
