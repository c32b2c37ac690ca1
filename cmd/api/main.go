package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/NewsDesk/internal/api"
	"github.com/LJTian/NewsDesk/internal/app"
	"github.com/LJTian/NewsDesk/internal/config"
	"github.com/LJTian/NewsDesk/internal/scheduler"
)

func main() {
	cfg := config.Load()
	log := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init app failed")
	}

	// 定时为缺图的新闻补抓预览图，未配置时不启用
	var backfill *scheduler.Scheduler
	if cfg.BackfillCron != "" {
		backfill, err = scheduler.New(cfg.BackfillCron, "image_backfill", a.News.BackfillImages, log,
			scheduler.WithTimeout(30*time.Minute))
		if err != nil {
			log.Fatal().Err(err).Str("spec", cfg.BackfillCron).Msg("init backfill scheduler failed")
		}
		backfill.Start(15 * time.Second)
	}

	srv := api.NewServer(a.Store, a.News, a.Files, cfg.AppURL, log)
	r := api.NewRouter(api.RouterConfig{
		FrontendOrigins: cfg.FrontendOrigins,
		AdminUser:       cfg.AdminBasicUser,
		AdminPass:       cfg.AdminBasicPass,
		StorageRoot:     a.StaticRoot,
	}, srv)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpSrv.Addr).Str("storage", cfg.StorageDriver).Msg("starting api server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exit")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if backfill != nil {
		backfill.Stop()
	}
}
