package bot

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/dimanchick22/alicebot/internal/retryutil"
	"github.com/dimanchick22/alicebot/internal/telegram"
)

// webhookRouter builds the intake routes. The webhook path carries a
// token-derived secret so only Telegram's calls are accepted.
func (b *Bot) webhookRouter(secret string) *echo.Echo {
	e := echo.New()
	e.POST("/telegram/webhook/:secret", func(c *echo.Context) error {
		if c.Param("secret") != secret {
			b.logger.Warn("telegram_webhook_bad_secret", "remote", c.Request().RemoteAddr)
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		var u telegram.Update
		if err := c.Bind(&u); err != nil {
			b.logger.Warn("telegram_webhook_decode_error", "error", err.Error())
			return echo.NewHTTPError(http.StatusBadRequest, "bad update")
		}
		b.handleUpdate(c.Request().Context(), u)
		return c.NoContent(http.StatusOK)
	})
	e.GET("/healthz", func(c *echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return e
}

// runWebhook serves update intake over HTTP instead of long polling.
func (b *Bot) runWebhook(ctx context.Context) error {
	secret := telegram.WebhookSecret(b.cfg.Telegram.BotToken)

	srv := &http.Server{
		Addr:              b.cfg.Telegram.WebhookListenAddr,
		Handler:           b.webhookRouter(secret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	b.registerWebhook(ctx, secret)

	errc := make(chan error, 1)
	go func() {
		b.logger.Info("telegram_webhook_listen", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			b.logger.Warn("telegram_webhook_shutdown_error", "error", err.Error())
		}
		<-errc
		return nil
	case err := <-errc:
		return err
	}
}

// registerWebhook points Telegram at this deployment. A failed first
// attempt is retried once in the background so a slow Telegram API does
// not keep the process from starting.
func (b *Bot) registerWebhook(ctx context.Context, secret string) {
	url := strings.TrimRight(b.cfg.Telegram.WebhookURL, "/") + "/telegram/webhook/" + secret
	err := b.api.SetWebhook(ctx, url, b.cfg.Telegram.MaxConnections)
	if err == nil {
		b.logger.Info("telegram_webhook_set", "max_connections", b.cfg.Telegram.MaxConnections)
		return
	}
	b.logger.Warn("telegram_webhook_set_error", "error", err.Error())
	retryutil.AsyncRetry(b.logger, "telegram_set_webhook", 0, 0, func(ctx context.Context) error {
		return b.api.SetWebhook(ctx, url, b.cfg.Telegram.MaxConnections)
	})
}
