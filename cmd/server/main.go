package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ytakahashi/taskflow/internal/config"
	"github.com/ytakahashi/taskflow/internal/handlers"
	"github.com/ytakahashi/taskflow/internal/logger"
	"github.com/ytakahashi/taskflow/internal/notify"
	"github.com/ytakahashi/taskflow/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx := context.Background()

	kv, err := services.Open(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("failed to open store", "backend", cfg.Store.Backend, "error", err)
	}
	defer kv.Close()

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.MailEnabled() {
		smtp, err := notify.NewSMTPMailer(cfg)
		if err != nil {
			logger.Fatal("failed to create mailer", "error", err)
		}
		mailer = smtp
	} else {
		logger.Warn("EMAIL_USER not set, reminder emails will only be logged")
	}

	links := notify.NewLinks(kv)
	dispatcherCfg := notify.DispatcherConfig{
		AppURL:   cfg.AppURL,
		Lead:     cfg.ReminderLead,
		Location: cfg.Location,
	}

	var bot *messaging_api.MessagingApiAPI
	var opts []notify.DispatcherOption
	if cfg.LineEnabled() {
		bot, err = messaging_api.NewMessagingApiAPI(cfg.LineChannelToken)
		if err != nil {
			logger.Fatal("failed to create LINE bot client", "error", err)
		}
		opts = append(opts, notify.WithLine(notify.NewLinePusher(bot), links))
	}
	dispatcher := notify.NewDispatcher(dispatcherCfg, mailer, opts...)

	reminderHandler := handlers.NewReminderHandler(dispatcher)
	healthHandler := handlers.NewHealthHandler(kv)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.POST("/api/schedule-reminder", reminderHandler.ScheduleReminder)
	e.POST("/api/send-reminder", reminderHandler.SendReminder)
	e.GET("/api/health", healthHandler.API)
	e.GET("/health", healthHandler.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if bot != nil {
		webhookHandler := handlers.NewWebhookHandler(bot, links, cfg.LineChannelSecret)
		e.POST("/webhook", webhookHandler.HandleWebhook)
	}

	go func() {
		logger.Info("TaskFlow Pro server starting", "port", cfg.Port, "store", cfg.Store.Backend, "line", bot != nil)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		ctx,
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				logger.Info("shutting down server...")
				return e.Shutdown(ctx)
			},
			"reminders": func(ctx context.Context) error {
				return dispatcher.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	kv.Close()
	os.Exit(exitCode)
}
