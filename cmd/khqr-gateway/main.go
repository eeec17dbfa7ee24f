package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/riel-labs/khqr-gateway/internal/api"
	"github.com/riel-labs/khqr-gateway/internal/bakong"
	"github.com/riel-labs/khqr-gateway/internal/config"
	"github.com/riel-labs/khqr-gateway/internal/ledger"
	"github.com/riel-labs/khqr-gateway/internal/monitor"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis (resolved-payment ledger) ───────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}
	book := ledger.New(rdb)

	// ── Bakong client (status checker + deeplinks) ────────────────────────────
	bk := bakong.NewClient(cfg.Bakong.APIURL, cfg.Bakong.Token)

	// ── Monitoring engine ─────────────────────────────────────────────────────
	reg := monitor.NewRegistry()
	sched := monitor.NewScheduler(
		reg,
		bk,
		ledger.NewSink(book, log),
		cfg.Monitor.TickInterval(),
		cfg.Monitor.MaxWatch(),
		log,
	)
	svc := monitor.NewService(reg, sched)

	go sched.Run(ctx)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api.NewHandler(svc, bk, book, log).Register(r.Group("/api"))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
