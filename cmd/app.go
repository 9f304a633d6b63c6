package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/FocusRoom/internal/application/config"
	"github.com/qrave1/FocusRoom/internal/application/constant"
	"github.com/qrave1/FocusRoom/internal/application/metric"
	"github.com/qrave1/FocusRoom/internal/domain/models"
	"github.com/qrave1/FocusRoom/internal/domain/room"
	"github.com/qrave1/FocusRoom/internal/infra/adapters/memory"
	"github.com/qrave1/FocusRoom/internal/infra/adapters/postgres"
	"github.com/qrave1/FocusRoom/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/FocusRoom/internal/infra/adapters/scheduler"
	"github.com/qrave1/FocusRoom/internal/infra/ports/http/handlers"
	"github.com/qrave1/FocusRoom/internal/infra/ports/http/server"
	"github.com/qrave1/FocusRoom/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	slog.Info("Running app", slog.Bool("debug", cfg.Debug), slog.String(constant.Storage, cfg.Storage))

	var store room.StateStore = room.NopStore{}

	if cfg.Storage == config.StoragePostgres {
		var dbConn *sqlx.DB

		dbConn, err = postgres.NewPostgres(ctx, cfg.Postgres.DSN())
		if err != nil {
			slog.Error("connect to postgres", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer dbConn.Close()

		store = repository.NewRoomStateRepo(dbConn)
	}

	wakeScheduler := scheduler.NewTimerScheduler()
	defer wakeScheduler.Stop()

	roomRegistry := memory.NewRoomRegistry(func(roomID string) *room.Room {
		return room.New(
			roomID,
			wakeScheduler,
			room.WithStore(store),
			room.WithResyncInterval(cfg.ResyncInterval),
			room.WithPhaseHook(func(completed models.Phase, awarded int) {
				metric.RecordPhaseCompleted(string(completed), awarded)
			}),
		)
	})
	wsConnRepo := memory.NewWSConnectionRepository()

	signalingUsecase := usecase.NewSignalingUsecase(
		roomRegistry,
		usecase.SystemTickers{},
		cfg.MessageRate,
		cfg.MessageBurst,
	)

	go signalingUsecase.RunResync(ctx, cfg.ResyncInterval)

	roomHandler := handlers.NewRoomHandler(signalingUsecase)
	iceHandler := handlers.NewIceHandler(cfg)
	wsHandler := handlers.NewWebSocketHandler(cfg, signalingUsecase, wsConnRepo)

	echoSrv := server.New(roomHandler, iceHandler, wsHandler)

	metricsSrv := metric.NewServer()

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	// Запускаем HTTP сервер
	go func() {
		slog.Info("HTTP server starting", slog.String(constant.Port, cfg.Port))
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	// Запускаем сервер метрик
	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	// Ожидаем сигнал завершения или ошибку сервера
	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"Metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	slog.Info(
		"Closing rooms",
		slog.Int("rooms", roomRegistry.Count()),
		slog.Int("connections", wsConnRepo.Count()),
		slog.Int("pending_wakes", wakeScheduler.Pending()),
	)

	// Закрываем websocket соединения, они не завершаются через Shutdown
	wsConnRepo.CloseAll(websocket.CloseGoingAway, "server shutdown")
	roomRegistry.CloseAll()

	// Graceful shutdown
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
