// Command mockapi serves the in-memory LiveGuard backend used by the tests,
// so the liveguard client can be tried without the production API.
//
// Demo only: state lives in memory and is lost on exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	handlers "LiveGuard/internal/handler"
	"LiveGuard/pkg/config"
	"LiveGuard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "config file")
	addr := flag.String("addr", "", "listen address (default mock.addr)")
	throttle := flag.Bool("throttle", true, "apply alert_creation_rate_limit to POST /api/alerts/create/")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Mock.Addr = *addr
	}
	if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	var opts []handlers.Option
	if *throttle {
		opts = append(opts, handlers.WithCreateThrottle())
	}
	h := handlers.NewHandlers(opts...)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog(logger.Named("http")))
	h.Register(engine)

	srv := &http.Server{Addr: cfg.Mock.Addr, Handler: engine}
	go func() {
		logger.Info("mock api listening", zap.String("addr", cfg.Mock.Addr),
			zap.String("civilian", handlers.CivilianEmail),
			zap.String("agency", handlers.AgencyEmail),
			zap.String("admin", handlers.AdminEmail))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("mock api stopped", zap.Error(err))
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
