// Package auth keeps the signed-in user on the device: login, logout,
// restore on launch and forced logout when the API client gives up on a token.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"LiveGuard/internal/apiclient"
	"LiveGuard/internal/localstore"
	"LiveGuard/internal/models"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/i18n"
	"LiveGuard/pkg/logger"
	"LiveGuard/pkg/util"
)

type Session struct {
	store      *localstore.Store
	api        *apiclient.Client
	sig        *util.Signals
	log        *zap.Logger
	clientType string
}

type Option func(*Session)

// WithClientType sets the client_type sent on login. Agency consoles use
// AGENCY so non-agency accounts are refused.
func WithClientType(t string) Option {
	return func(s *Session) { s.clientType = t }
}

func WithSignals(sig *util.Signals) Option {
	return func(s *Session) { s.sig = sig }
}

// NewSession binds store and api and installs ForceLogout as the client's
// auth-failure hook.
func NewSession(store *localstore.Store, api *apiclient.Client, opts ...Option) *Session {
	s := &Session{
		store: store,
		api:   api,
		sig:   util.Sig(),
		log:   logger.Named("auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	api.SetAuthFailureHook(s.ForceLogout)
	return s
}

// Login signs in and persists tokens and profile. With remember the email is
// kept for the next login form, otherwise any remembered email is dropped.
func (s *Session) Login(ctx context.Context, email, password string, remember bool) (*models.Profile, error) {
	email = strings.TrimSpace(email)

	var fields []errors.FieldError
	if email == "" {
		fields = append(fields, errors.FieldError{Field: "email", Message: i18n.M("validation.email")})
	}
	if password == "" {
		fields = append(fields, errors.FieldError{Field: "password", Message: i18n.M("validation.password")})
	}
	if len(fields) > 0 {
		return nil, errors.Validation(fields...)
	}

	resp, err := s.api.Login(ctx, models.LoginRequest{Email: email, Password: password, ClientType: s.clientType})
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveTokens(ctx, resp.Access, resp.Refresh); err != nil {
		return nil, errors.Wrap(err, "failed to store credentials")
	}
	if err := s.store.SaveProfile(ctx, resp.User); err != nil {
		return nil, errors.Wrap(err, "failed to store profile")
	}

	remembered := ""
	if remember {
		remembered = email
	}
	if err := s.store.SetRememberedEmail(ctx, remembered); err != nil {
		s.log.Warn("failed to update remembered email", zap.Error(err))
	}

	s.log.Info("signed in", zap.Int64("user_id", resp.User.ID), zap.String("role", string(resp.User.Role)))
	return &resp.User, nil
}

// Logout tells the server (best-effort) and clears local credentials.
func (s *Session) Logout(ctx context.Context) error {
	if refresh, _ := s.store.RefreshToken(ctx); refresh != "" {
		if err := s.api.Logout(ctx, refresh); err != nil {
			s.log.Warn("server logout failed", zap.Error(err))
		}
	}
	return s.store.ClearCredentials(ctx)
}

// Restore reports the stored profile when an access token is present.
func (s *Session) Restore(ctx context.Context) (*models.Profile, bool, error) {
	access, err := s.store.AccessToken(ctx)
	if err != nil || access == "" {
		return nil, false, err
	}
	p, err := s.store.Profile(ctx)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// RefreshProfile reloads the profile from the server and stores it.
func (s *Session) RefreshProfile(ctx context.Context) (*models.Profile, error) {
	p, err := s.api.Profile(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveProfile(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterDevice is best-effort; failures are only logged.
func (s *Session) RegisterDevice(ctx context.Context, pushToken string) {
	if pushToken == "" {
		return
	}
	if err := s.api.RegisterDevice(ctx, pushToken); err != nil {
		s.log.Warn("device registration failed", zap.Error(err))
	}
}

// Claims decodes the stored access token without verifying it. The result
// is for display only (user id, expiry).
func (s *Session) Claims(ctx context.Context) (*models.TokenClaims, error) {
	access, err := s.store.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, errors.New("not signed in")
	}
	var claims models.TokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return nil, errors.Wrap(err, "malformed access token")
	}
	return &claims, nil
}

// ExpiresIn is the remaining lifetime of the access token, or 0.
func (s *Session) ExpiresIn(ctx context.Context, now time.Time) time.Duration {
	c, err := s.Claims(ctx)
	if err != nil || c.ExpiresAt == nil {
		return 0
	}
	return max(0, c.ExpiresAt.Sub(now))
}

// ForceLogout clears credentials and emits models.SigForcedLogout. The API
// client calls it after a failed refresh or a replayed 401.
func (s *Session) ForceLogout() {
	if err := s.store.ClearCredentials(context.Background()); err != nil {
		s.log.Error("failed to clear credentials", zap.Error(err))
	}
	s.log.Warn("session expired, signed out")
	s.sig.Emit(models.SigForcedLogout, nil)
}

// OnForcedLogout registers fn and returns a function that unregisters it.
func (s *Session) OnForcedLogout(fn func()) func() {
	id := s.sig.Connect(models.SigForcedLogout, func(any, ...any) { fn() })
	return func() { s.sig.Disconnect(models.SigForcedLogout, id) }
}
