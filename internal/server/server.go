package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 20 * time.Second

// 停止時に終わるのを待つもの（通知の送信中など）
type Drainer interface {
	Wait(ctx context.Context) error
}

func New(cfg config.Config, l *zap.Logger, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.NewRequestValidator()

	e.Use(logger.RequestID())
	e.Use(logger.RequestLogger(l))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.FEURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, logger.HeaderRequestID},
	}))

	RegisterRoutes(e, cfg, h)
	return e
}

func Addr(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// ctxがキャンセルされたらリクエストと送信中の通知を待って止まる
func Start(ctx context.Context, e *echo.Echo, addr string, drain Drainer, l *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		l.Info("server started", zap.String("addr", addr))
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

	l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		l.Error("server shutdown failed", zap.Error(err))
	}
	if drain != nil {
		if err := drain.Wait(shutdownCtx); err != nil {
			l.Warn("pending notifications dropped", zap.Error(err))
		}
	}
	return nil
}
