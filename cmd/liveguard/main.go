// Command liveguard is a terminal client for the LiveGuard API: civilians
// submit and follow alerts, agencies work their queue, admins oversee.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"LiveGuard/internal/alertstore"
	"LiveGuard/internal/apiclient"
	"LiveGuard/internal/auth"
	"LiveGuard/internal/listeners"
	"LiveGuard/internal/localstore"
	"LiveGuard/pkg/config"
	"LiveGuard/pkg/logger"
	"LiveGuard/pkg/metrics"
	"LiveGuard/pkg/sse"
)

const usage = `usage: liveguard [-config file] [-metrics-addr addr] <command> [flags]

commands:
  login      sign in (-email, -password, -remember, -agency)
  logout     sign out and clear the device
  whoami     show the signed-in profile
  submit     raise an alert from the device location
  status     follow an alert until it is resolved or cancelled
  cancel     cancel an alert inside the cancel window
  rate       rate a resolved alert
  history    list your alerts
  contacts   list, add or remove emergency contacts
  agency     work the agency queue
  admin      dashboard, alerts, agencies, users, reports and settings
`

// app 命令共享的依赖
type app struct {
	cfg     *config.Config
	local   *localstore.Store
	api     *apiclient.Client
	session *auth.Session
	alerts  *alertstore.Store
	metrics *metrics.Metrics

	// agency console events, streamed on /events when the HTTP server runs
	hub *sse.Hub
	log *zap.Logger
	out *json.Encoder
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":    cmdLogin,
	"logout":   cmdLogout,
	"whoami":   cmdWhoami,
	"submit":   cmdSubmit,
	"status":   cmdStatus,
	"cancel":   cmdCancel,
	"rate":     cmdRate,
	"history":  cmdHistory,
	"contacts": cmdContacts,
	"agency":   cmdAgency,
	"admin":    cmdAdmin,
}

func main() {
	configPath := flag.String("config", "", "config file (yaml, json or toml)")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = *metricsAddr
	}
	if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, closeApp, err := newApp(cfg)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer closeApp()

	if err := cmd(ctx, a, flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) (*app, func(), error) {
	local, closeStore, err := localstore.Open(cfg.Store, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}

	hub := sse.NewHub(0)
	var m *metrics.Metrics
	var srv *http.Server
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
		metrics.SetGlobal(m)
		srv = serve(cfg.Metrics.Addr, m, hub)
	}
	disconnect := listeners.InitAlertListeners()

	api := apiclient.NewFromConfig(cfg.API, local, apiclient.WithMetrics(m))
	opts := []auth.Option{}
	if cfg.API.ClientType != "" {
		opts = append(opts, auth.WithClientType(cfg.API.ClientType))
	}
	session := auth.NewSession(local, api, opts...)
	session.OnForcedLogout(func() {
		fmt.Fprintln(os.Stderr, "session expired, please log in again")
	})

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")

	a := &app{
		cfg:     cfg,
		local:   local,
		api:     api,
		session: session,
		alerts:  alertstore.New(api),
		metrics: m,
		hub:     hub,
		log:     logger.Named("cli"),
		out:     out,
	}
	closer := func() {
		disconnect()
		if srv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = srv.Shutdown(sctx)
			cancel()
		}
		if err := closeStore(); err != nil {
			logger.Warn("close device store", zap.Error(err))
		}
	}
	return a, closer, nil
}

// serve exposes /metrics and the agency event stream on /events.
func serve(addr string, m *metrics.Metrics, hub *sse.Hub) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/events", hub.Serve)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("metrics server listening", zap.String("addr", addr))
	return srv
}

func (a *app) print(v interface{}) error {
	return a.out.Encode(v)
}

// requireLogin restores the saved session or fails with a hint.
func (a *app) requireLogin(ctx context.Context) error {
	_, ok, err := a.session.Restore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not logged in, run: liveguard login -email ... -password ...")
	}
	return nil
}
