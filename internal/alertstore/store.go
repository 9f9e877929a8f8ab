// Package alertstore mirrors the server's view of the civilian's alerts.
//
// 每个操作有独立的 loading 标志和错误槽，一个操作成功不会清掉其他操作的错误。
// 服务器是唯一的事实来源，唯一例外是取消成功后本地把状态改成 CANCELLED。
package alertstore

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/i18n"
	"LiveGuard/pkg/logger"
	"LiveGuard/pkg/sse"
	"LiveGuard/pkg/util"
)

// Topic is the hub topic store events are published on.
const Topic = "alert"

// API is the slice of the REST client the store uses. *apiclient.Client
// implements it.
type API interface {
	CreateAlert(ctx context.Context, req models.CreateAlertRequest) (*models.Alert, error)
	AlertStatus(ctx context.Context, alertID int64) (*models.Alert, error)
	AlertHistory(ctx context.Context) ([]models.Alert, error)
	CancelAlert(ctx context.Context, alertID int64) (*models.CancelResponse, error)
	RateAlert(ctx context.Context, alertID int64, rating int) error
	UpdateAlertLocation(ctx context.Context, alertID int64, loc models.LocationUpdate) error
}

type State struct {
	CurrentAlert *models.Alert  `json:"current_alert"`
	AlertStatus  *models.Alert  `json:"alert_status"`
	AlertHistory []models.Alert `json:"alert_history"`

	Submitting     bool `json:"submitting"`
	LoadingStatus  bool `json:"loading_status"`
	LoadingHistory bool `json:"loading_history"`
	Cancelling     bool `json:"cancelling"`

	SubmitError  string `json:"submit_error,omitempty"`
	StatusError  string `json:"status_error,omitempty"`
	HistoryError string `json:"history_error,omitempty"`
	CancelError  string `json:"cancel_error,omitempty"`
}

func (s State) clone() State {
	c := s
	c.CurrentAlert = s.CurrentAlert.Clone()
	c.AlertStatus = s.AlertStatus.Clone()
	if s.AlertHistory != nil {
		c.AlertHistory = make([]models.Alert, len(s.AlertHistory))
		for i := range s.AlertHistory {
			c.AlertHistory[i] = *s.AlertHistory[i].Clone()
		}
	}
	return c
}

type Store struct {
	api API
	hub *sse.Hub
	sig *util.Signals
	log *zap.Logger

	mu    sync.RWMutex
	state State
}

type Option func(*Store)

// WithHub publishes store events on hub instead of a private one.
func WithHub(hub *sse.Hub) Option {
	return func(s *Store) { s.hub = hub }
}

func WithSignals(sig *util.Signals) Option {
	return func(s *Store) { s.sig = sig }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

func New(api API, opts ...Option) *Store {
	s := &Store{
		api: api,
		sig: util.Sig(),
		log: logger.Named("alertstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = sse.NewHub(0)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe streams an Event after every state change.
func (s *Store) Subscribe() *sse.Subscription {
	return s.hub.Subscribe(Topic)
}

// update applies fn under the lock and publishes the resulting state.
func (s *Store) update(kind EventKind, fn func(st *State)) State {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.clone()
	s.mu.Unlock()

	if err := s.hub.Publish(Topic, string(kind), snap); err != nil {
		s.log.Warn("failed to publish store event", zap.String("kind", string(kind)), zap.Error(err))
	}
	return snap
}

// CreateAlert submits a new alert. On failure the current alert and the
// history are left as they were.
func (s *Store) CreateAlert(ctx context.Context, req models.CreateAlertRequest) (*models.Alert, error) {
	s.update(EventSubmitStarted, func(st *State) { st.Submitting = true })

	alert, err := s.api.CreateAlert(ctx, req)
	if err != nil {
		s.update(EventSubmitFailed, func(st *State) {
			st.Submitting = false
			st.SubmitError = message(err, "error.create_alert")
		})
		return nil, err
	}

	s.update(EventAlertCreated, func(st *State) {
		st.Submitting = false
		st.SubmitError = ""
		st.CurrentAlert = alert.Clone()
	})
	s.log.Info("alert created", zap.Int64("alert_id", alert.ID), zap.String("type", string(alert.AlertType)))
	s.sig.Emit(models.SigAlertCreated, alert.Clone())
	return alert, nil
}

// FetchAlertStatus overwrites AlertStatus and CurrentAlert with the server's
// answer. The last response to arrive wins.
func (s *Store) FetchAlertStatus(ctx context.Context, alertID int64) (*models.Alert, error) {
	s.update(EventStatusStarted, func(st *State) { st.LoadingStatus = true })

	alert, err := s.api.AlertStatus(ctx, alertID)
	if err != nil {
		s.update(EventStatusFailed, func(st *State) {
			st.LoadingStatus = false
			st.StatusError = message(err, "error.alert_status")
		})
		return nil, err
	}

	var from models.AlertStatus
	s.update(EventStatusFetched, func(st *State) {
		if st.CurrentAlert != nil && st.CurrentAlert.ID == alert.ID {
			from = st.CurrentAlert.Status
		}
		st.LoadingStatus = false
		st.StatusError = ""
		st.AlertStatus = alert.Clone()
		st.CurrentAlert = alert.Clone()
	})
	if from != "" && from != alert.Status {
		s.sig.Emit(models.SigAlertStatusChanged, alert.Clone(), from, alert.Status)
	}
	return alert, nil
}

// FetchAlertHistory replaces the history, newest first.
func (s *Store) FetchAlertHistory(ctx context.Context) ([]models.Alert, error) {
	s.update(EventHistoryStarted, func(st *State) { st.LoadingHistory = true })

	list, err := s.api.AlertHistory(ctx)
	if err != nil {
		s.update(EventHistoryFailed, func(st *State) {
			st.LoadingHistory = false
			st.HistoryError = message(err, "error.alert_history")
		})
		return nil, err
	}

	sorted := slices.Clone(list)
	slices.SortStableFunc(sorted, func(a, b models.Alert) int { return b.CreatedAt.Compare(a.CreatedAt) })

	snap := s.update(EventHistoryFetched, func(st *State) {
		st.LoadingHistory = false
		st.HistoryError = ""
		st.AlertHistory = sorted
	})
	return snap.AlertHistory, nil
}

// CancelAlert cancels on the server. The reply carries no alert, so on
// success the current alert is patched to CANCELLED locally.
func (s *Store) CancelAlert(ctx context.Context, alertID int64) error {
	s.update(EventCancelStarted, func(st *State) { st.Cancelling = true })

	if _, err := s.api.CancelAlert(ctx, alertID); err != nil {
		s.update(EventCancelFailed, func(st *State) {
			st.Cancelling = false
			st.CancelError = message(err, "error.cancel_alert")
		})
		return err
	}

	var patched *models.Alert
	var from models.AlertStatus
	s.update(EventCancelled, func(st *State) {
		st.Cancelling = false
		st.CancelError = ""
		if st.CurrentAlert != nil && st.CurrentAlert.ID == alertID {
			from = st.CurrentAlert.Status
			st.CurrentAlert.Status = models.StatusCancelled
			patched = st.CurrentAlert.Clone()
		}
		if st.AlertStatus != nil && st.AlertStatus.ID == alertID {
			st.AlertStatus.Status = models.StatusCancelled
		}
	})
	s.log.Info("alert cancelled", zap.Int64("alert_id", alertID))
	if patched != nil && from != models.StatusCancelled {
		s.sig.Emit(models.SigAlertStatusChanged, patched, from, models.StatusCancelled)
	}
	return nil
}

// RateAlert is best-effort: a failure is logged and returned but sets no
// error slot.
func (s *Store) RateAlert(ctx context.Context, alertID int64, rating int) error {
	if rating < 1 || rating > 5 {
		return errors.Validation(errors.FieldError{Field: "rating", Message: i18n.M("validation.rating")})
	}
	if err := s.api.RateAlert(ctx, alertID, rating); err != nil {
		s.log.Warn("rating failed", zap.Int64("alert_id", alertID), zap.Error(err))
		return err
	}
	s.update(EventRated, func(st *State) {
		r := rating
		for _, a := range []*models.Alert{st.CurrentAlert, st.AlertStatus} {
			if a != nil && a.ID == alertID {
				a.Rating = &r
			}
		}
	})
	return nil
}

// UpdateAlertLocation pushes a live fix. Best-effort like RateAlert, and
// skipped once the alert is known to be terminal.
func (s *Store) UpdateAlertLocation(ctx context.Context, alertID int64, lat, lon float64, accuracy *float64) error {
	if s.knownTerminal(alertID) {
		return nil
	}
	err := s.api.UpdateAlertLocation(ctx, alertID, models.LocationUpdate{Latitude: lat, Longitude: lon, Accuracy: accuracy})
	if err != nil {
		s.log.Warn("location update failed", zap.Int64("alert_id", alertID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) knownTerminal(alertID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range []*models.Alert{s.state.CurrentAlert, s.state.AlertStatus} {
		if a != nil && a.ID == alertID && a.Status.IsTerminal() {
			return true
		}
	}
	return false
}

func (s *Store) ClearSubmitError() {
	s.update(EventErrorCleared, func(st *State) { st.SubmitError = "" })
}

func (s *Store) ClearStatusError() {
	s.update(EventErrorCleared, func(st *State) { st.StatusError = "" })
}

func (s *Store) ClearHistoryError() {
	s.update(EventErrorCleared, func(st *State) { st.HistoryError = "" })
}

func (s *Store) ClearCancelError() {
	s.update(EventErrorCleared, func(st *State) { st.CancelError = "" })
}

// Reset drops all state, e.g. on logout.
func (s *Store) Reset() {
	s.update(EventReset, func(st *State) { *st = State{} })
}

func message(err error, fallbackKey string) string {
	if msg := errors.GetMessage(err); msg != "" {
		return msg
	}
	return i18n.M(fallbackKey)
}
