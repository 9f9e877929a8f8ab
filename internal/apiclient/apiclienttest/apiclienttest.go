// Package apiclienttest wires an apiclient.Client to the in-memory contract
// double for package tests.
package apiclienttest

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"LiveGuard/internal/apiclient"
	handlers "LiveGuard/internal/handler"
	"LiveGuard/internal/localstore"
	"LiveGuard/internal/models"
	"LiveGuard/pkg/cache"
)

type Env struct {
	API    *handlers.Handlers
	Server *httptest.Server
	Store  *localstore.Store
	Client *apiclient.Client

	forcedLogouts atomic.Int32
}

// New starts a contract double and a client logged out against it. Both are
// torn down with t.
func New(t testing.TB, opts ...handlers.Option) *Env {
	t.Helper()

	api := handlers.NewHandlers(opts...)
	srv := httptest.NewServer(api.NewEngine())
	t.Cleanup(srv.Close)

	kv := cache.NewLocalCache(cache.LocalConfig{MaxSize: 128})
	t.Cleanup(func() { _ = kv.Close() })
	store := localstore.New(localstore.NewCacheKV(kv))

	env := &Env{API: api, Server: srv, Store: store}
	env.Client = apiclient.New(srv.URL, store,
		apiclient.WithTimeout(5*time.Second),
		apiclient.WithAuthFailureHook(func() { env.forcedLogouts.Add(1) }),
	)
	return env
}

// LoginAs logs in a seeded account and stores its tokens.
func (e *Env) LoginAs(t testing.TB, email string) *models.LoginResponse {
	t.Helper()
	ctx := context.Background()

	req := models.LoginRequest{Email: email, Password: handlers.SeedPassword}
	if email == handlers.AgencyEmail {
		req.ClientType = string(models.RoleAgency)
	}
	resp, err := e.Client.Login(ctx, req)
	require.NoError(t, err)
	require.NoError(t, e.Store.SaveTokens(ctx, resp.Access, resp.Refresh))
	require.NoError(t, e.Store.SaveProfile(ctx, resp.User))
	return resp
}

// ForcedLogouts counts how often the client's auth-failure hook fired.
func (e *Env) ForcedLogouts() int { return int(e.forcedLogouts.Load()) }

// Peer is a second client with its own token store against the same double,
// e.g. the agency side of a scenario.
func (e *Env) Peer(t testing.TB) *Env {
	t.Helper()

	kv := cache.NewLocalCache(cache.LocalConfig{MaxSize: 128})
	t.Cleanup(func() { _ = kv.Close() })
	store := localstore.New(localstore.NewCacheKV(kv))

	peer := &Env{API: e.API, Server: e.Server, Store: store}
	peer.Client = apiclient.New(e.Server.URL, store,
		apiclient.WithTimeout(5*time.Second),
		apiclient.WithAuthFailureHook(func() { peer.forcedLogouts.Add(1) }),
	)
	return peer
}
