package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quitpal/notifier/internal/config"
	"github.com/quitpal/notifier/internal/domain"
	"github.com/quitpal/notifier/internal/httpapi"
	"github.com/quitpal/notifier/internal/push"
	"github.com/quitpal/notifier/internal/scheduler"
	"github.com/quitpal/notifier/internal/service"
	"github.com/quitpal/notifier/internal/store"
)

// App owns the process lifecycle: wiring, startup, shutdown.
type App struct {
	cfg config.Config
	log *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *App {
	return &App{cfg: cfg, log: log}
}

// Run starts the pipeline and blocks until a shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting notifier",
		zap.String("db", a.cfg.DBPath),
		zap.String("http", a.cfg.HTTPAddr),
	)

	cat, err := domain.LoadCatalog()
	if err != nil {
		a.log.Error("load catalog failed", zap.Error(err))
		return err
	}

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	defer func() { _ = repo.Close() }()
	a.log.Info("sqlite ready")

	dispatcher := push.NewClient(push.Config{
		BaseURL: a.cfg.PushBaseURL,
		AppID:   a.cfg.PushAppID,
		APIKey:  a.cfg.PushAPIKey,
	}, a.log)

	svc := service.New(repo, cat, dispatcher, a.log, a.cfg.DefaultLang, a.cfg.DefaultTZ)

	settings, err := svc.Initialize(ctx)
	if err != nil {
		a.log.Error("initialize failed", zap.Error(err))
		return err
	}
	// Bring the schedule current on every boot; regeneration is idempotent.
	if err := svc.ScheduleUserNotifications(ctx, settings); err != nil {
		a.log.Error("initial scheduling failed", zap.Error(err))
		return err
	}

	srv := &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      httpapi.New(svc, a.log),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := scheduler.New(repo, dispatcher, a.log)
	go poller.Run(ctx)

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	return nil
}
