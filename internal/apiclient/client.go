// Package apiclient is the authenticated REST client every LiveGuard
// component talks to the backend through.
//
// 每个请求携带 Bearer token；收到 401 时用 refresh token 刷新一次并重放原请求，
// 重放仍 401 或刷新失败则清空凭据并触发强制登出。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/config"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/i18n"
	"LiveGuard/pkg/logger"
	"LiveGuard/pkg/metrics"
)

const (
	TracerName = "liveguard/apiclient"

	refreshPath = "/api/auth/token/refresh/"
	loginPath   = "/api/auth/login/"

	// 响应体上限
	maxBodyBytes = 4 << 20
)

// TokenStore is where the client reads and rotates credentials.
// *localstore.Store satisfies it.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SaveTokens(ctx context.Context, access, refresh string) error
	ClearCredentials(ctx context.Context) error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	log        *zap.Logger

	refreshGroup singleflight.Group

	mu            sync.RWMutex
	onAuthFailure func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithAuthFailureHook sets the forced-logout callback.
func WithAuthFailureHook(fn func()) Option {
	return func(c *Client) { c.onAuthFailure = fn }
}

func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		metrics:    metrics.Global(),
		tracer:     otel.Tracer(TracerName),
		log:        logger.Named("apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the api config section.
func NewFromConfig(cfg config.APIConfig, tokens TokenStore, opts ...Option) *Client {
	return New(cfg.BaseURL, tokens, append([]Option{WithTimeout(cfg.Timeout)}, opts...)...)
}

// SetAuthFailureHook replaces the forced-logout callback. The auth session is
// usually built after the client, so this is the common way to wire it.
func (c *Client) SetAuthFailureHook(fn func()) {
	c.mu.Lock()
	c.onAuthFailure = fn
	c.mu.Unlock()
}

func (c *Client) BaseURL() string { return c.baseURL }

// request describes one call. route is the path template used for metric
// labels and span names so ids do not explode cardinality.
type request struct {
	method   string
	route    string
	path     string
	query    url.Values
	body     interface{}
	fallback string
}

func newRequest(method, route string, args ...interface{}) request {
	path := route
	if len(args) > 0 {
		path = fmt.Sprintf(strings.ReplaceAll(route, "{id}", "%v"), args...)
	}
	return request{method: method, route: route, path: path, fallback: i18n.M("error.request")}
}

func (r request) with(body interface{}) request {
	r.body = body
	return r
}

func (r request) fallbackTo(key string) request {
	r.fallback = i18n.M(key)
	return r
}

type response struct {
	status int
	body   []byte
	// the access token the request was sent with
	token string
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

// call runs r with the 401 policy and decodes a 2xx body into out (if non-nil).
func (c *Client) call(ctx context.Context, r request, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, r.method+" "+r.route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.method),
			attribute.String("http.route", r.route),
		),
	)
	defer span.End()

	err := c.exchange(ctx, r, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.GetMessage(err))
	}
	return err
}

func (c *Client) exchange(ctx context.Context, r request, out interface{}) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}

	// 登录失败的 401 表示凭据错误，不走刷新
	if resp.status == http.StatusUnauthorized && r.path != refreshPath && r.path != loginPath {
		if err := c.renew(ctx, resp.token); err != nil {
			c.log.Warn("token refresh failed, forcing logout", zap.String("route", r.route), zap.Error(err))
			c.forceLogout(ctx)
			return errors.FromResponse(resp.status, resp.body, r.fallback)
		}

		// 只重放一次
		resp, err = c.send(ctx, r)
		if err != nil {
			return err
		}
		if resp.status == http.StatusUnauthorized {
			c.log.Warn("replayed request still unauthorized, forcing logout", zap.String("route", r.route))
			c.forceLogout(ctx)
			return errors.FromResponse(resp.status, resp.body, r.fallback)
		}
	}

	if !resp.ok() {
		return errors.FromResponse(resp.status, resp.body, r.fallback)
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		e := errors.Wrap(err, r.fallback)
		e.Kind = errors.KindServer
		e.Code = resp.status
		return e
	}
	return nil
}

// renew makes sure a fresh access token is stored. Concurrent callers share
// one refresh call. When another caller already rotated the token since
// usedToken was sent, no refresh is needed.
func (c *Client) renew(ctx context.Context, usedToken string) error {
	if c.tokens == nil {
		return errors.New("no token store")
	}
	if c.rotatedSince(ctx, usedToken) {
		return nil
	}

	_, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		// 上一轮刷新可能刚结束
		if c.rotatedSince(ctx, usedToken) {
			return nil, nil
		}
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *Client) rotatedSince(ctx context.Context, usedToken string) bool {
	current, err := c.tokens.AccessToken(ctx)
	return err == nil && current != "" && current != usedToken
}

func (c *Client) refresh(ctx context.Context) error {
	rt, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		c.metrics.IncTokenRefresh("error")
		return err
	}
	if rt == "" {
		c.metrics.IncTokenRefresh("missing")
		return errors.New("no refresh token stored")
	}

	r := newRequest(http.MethodPost, refreshPath).with(models.RefreshRequest{Refresh: rt})
	resp, err := c.send(ctx, r)
	if err != nil {
		c.metrics.IncTokenRefresh("error")
		return err
	}
	if !resp.ok() {
		c.metrics.IncTokenRefresh("rejected")
		return errors.FromResponse(resp.status, resp.body, r.fallback)
	}

	var pair models.RefreshResponse
	if err := json.Unmarshal(resp.body, &pair); err != nil || pair.Access == "" {
		c.metrics.IncTokenRefresh("rejected")
		return errors.WithCode(resp.status, "refresh response carried no access token")
	}
	if err := c.tokens.SaveTokens(ctx, pair.Access, pair.Refresh); err != nil {
		c.metrics.IncTokenRefresh("error")
		return errors.Wrap(err, "failed to store refreshed token")
	}
	c.metrics.IncTokenRefresh("success")
	return nil
}

func (c *Client) forceLogout(ctx context.Context) {
	if c.tokens != nil {
		if err := c.tokens.ClearCredentials(context.WithoutCancel(ctx)); err != nil {
			c.log.Error("failed to clear credentials", zap.Error(err))
		}
	}
	c.mu.RLock()
	hook := c.onAuthFailure
	c.mu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) send(ctx context.Context, r request) (response, error) {
	var rdr io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return response{}, errors.Wrap(err, r.fallback)
		}
		rdr = bytes.NewReader(b)
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, rdr)
	if err != nil {
		return response{}, errors.Wrap(err, r.fallback)
	}
	req.Header.Set("Accept", "application/json")
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	var token string
	if c.tokens != nil && r.path != refreshPath {
		token, err = c.tokens.AccessToken(ctx)
		if err != nil {
			c.log.Warn("failed to read access token", zap.Error(err))
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPIRequest(r.method, r.route, 0, time.Since(start))
		c.log.Debug("request failed",
			zap.String("method", r.method), zap.String("path", r.path),
			zap.String("request_id", reqID), zap.Error(err))
		return response{token: token}, errors.Transport(err, r.fallback).WithContext("route", r.route)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.ObserveAPIRequest(r.method, r.route, resp.StatusCode, time.Since(start))
	if err != nil {
		return response{token: token}, errors.Transport(err, r.fallback).WithContext("route", r.route)
	}

	c.log.Debug("request done",
		zap.String("method", r.method), zap.String("path", r.path),
		zap.Int("status", resp.StatusCode), zap.String("request_id", reqID),
		zap.Duration("took", time.Since(start)))

	return response{status: resp.StatusCode, body: body, token: token}, nil
}
