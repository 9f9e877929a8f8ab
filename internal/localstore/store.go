// Package localstore holds the state a LiveGuard client keeps on the device:
// credentials, the pending-alert retry payload, the rated-alert set, the
// emergency contacts and a couple of onboarding flags.
//
// Each key is owned by one flow at a time, so there is no cross-key locking;
// concurrent writers to the same key are last-writer-wins.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/cache"
	"LiveGuard/pkg/config"
	"LiveGuard/pkg/errors"
	"LiveGuard/pkg/i18n"
	"LiveGuard/pkg/util"
)

const (
	KeyAccessToken     = "@liveguard_auth_token"
	KeyRefreshToken    = "@liveguard_refresh_token"
	KeyProfile         = "@liveguard_user_profile"
	KeyOnboardingSeen  = "@liveguard_onboarding_seen"
	KeyRememberedEmail = "@liveguard_remembered_email"
	KeyRatedAlerts     = "@liveguard_rated_alerts"
	KeyPendingAlert    = "PENDING_ALERT"
	KeyContacts        = "EMERGENCY_CONTACTS"
)

const MaxContacts = 3

type Store struct {
	kv  KV
	now func() time.Time
}

func New(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Open builds the store selected by cfg. The returned closer releases the
// underlying database or cache.
func Open(cfg config.StoreConfig, cacheCfg cache.Config) (*Store, func() error, error) {
	switch cfg.Backend {
	case "", "sql":
		db, err := util.OpenDatabase(cfg.Driver, cfg.DSN, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open device store: %w", err)
		}
		kv, err := NewSQLKV(db)
		if err != nil {
			return nil, nil, err
		}
		closer := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return New(kv), closer, nil
	case "cache":
		c, err := cache.NewCache(cacheCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open device cache: %w", err)
		}
		return New(NewCacheKV(c)), c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func (s *Store) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		// 损坏的数据按不存在处理
		return false, nil
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, string(b))
}

// --- credentials ---

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, KeyAccessToken)
	return v, err
}

func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, KeyRefreshToken)
	return v, err
}

func (s *Store) SetAccessToken(ctx context.Context, access string) error {
	return s.kv.Set(ctx, KeyAccessToken, access)
}

// SaveTokens stores both tokens. An empty refresh keeps the stored one.
func (s *Store) SaveTokens(ctx context.Context, access, refresh string) error {
	if err := s.kv.Set(ctx, KeyAccessToken, access); err != nil {
		return err
	}
	if refresh == "" {
		return nil
	}
	return s.kv.Set(ctx, KeyRefreshToken, refresh)
}

// ClearCredentials removes tokens and the cached profile.
func (s *Store) ClearCredentials(ctx context.Context) error {
	for _, k := range []string{KeyAccessToken, KeyRefreshToken, KeyProfile} {
		if err := s.kv.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Profile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	ok, err := s.getJSON(ctx, KeyProfile, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p models.Profile) error {
	return s.setJSON(ctx, KeyProfile, p)
}

// --- pending alert ---

func (s *Store) PendingAlert(ctx context.Context) (*models.PendingAlert, error) {
	var p models.PendingAlert
	ok, err := s.getJSON(ctx, KeyPendingAlert, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SavePendingAlert(ctx context.Context, p models.PendingAlert) error {
	if p.SavedAt.IsZero() {
		p.SavedAt = s.now()
	}
	return s.setJSON(ctx, KeyPendingAlert, p)
}

func (s *Store) ClearPendingAlert(ctx context.Context) error {
	return s.kv.Delete(ctx, KeyPendingAlert)
}

// --- rated alerts ---

func (s *Store) ratedSet(ctx context.Context) ([]int64, error) {
	var ids []int64
	if _, err := s.getJSON(ctx, KeyRatedAlerts, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) IsRated(ctx context.Context, alertID int64) (bool, error) {
	ids, err := s.ratedSet(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, alertID), nil
}

// MarkRated records alertID so the rating prompt never shows for it again.
func (s *Store) MarkRated(ctx context.Context, alertID int64) error {
	ids, err := s.ratedSet(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, alertID) {
		return nil
	}
	return s.setJSON(ctx, KeyRatedAlerts, append(ids, alertID))
}

// --- emergency contacts ---

func (s *Store) Contacts(ctx context.Context) ([]models.EmergencyContact, error) {
	var list []models.EmergencyContact
	if _, err := s.getJSON(ctx, KeyContacts, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.EmergencyContact{}
	}
	return list, nil
}

func (s *Store) SaveContacts(ctx context.Context, list []models.EmergencyContact) error {
	if len(list) > MaxContacts {
		return contactLimitError()
	}
	return s.setJSON(ctx, KeyContacts, list)
}

// AddContact validates and appends one contact.
func (s *Store) AddContact(ctx context.Context, name, phone string) (models.EmergencyContact, error) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)

	var fields []errors.FieldError
	if name == "" {
		fields = append(fields, errors.FieldError{Field: "name", Message: i18n.M("validation.contact_name")})
	}
	if phone == "" {
		fields = append(fields, errors.FieldError{Field: "phone", Message: i18n.M("validation.contact_phone")})
	}
	if len(fields) > 0 {
		return models.EmergencyContact{}, errors.Validation(fields...)
	}

	list, err := s.Contacts(ctx)
	if err != nil {
		return models.EmergencyContact{}, err
	}
	if len(list) >= MaxContacts {
		return models.EmergencyContact{}, contactLimitError()
	}

	c := models.EmergencyContact{ID: uuid.NewString(), Name: name, Phone: phone}
	if err := s.SaveContacts(ctx, append(list, c)); err != nil {
		return models.EmergencyContact{}, err
	}
	return c, nil
}

func (s *Store) RemoveContact(ctx context.Context, id string) error {
	list, err := s.Contacts(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(list, func(c models.EmergencyContact) bool { return c.ID == id })
	return s.SaveContacts(ctx, kept)
}

func contactLimitError() *errors.Error {
	return errors.Validation(errors.FieldError{
		Field:   "contacts",
		Message: i18n.M("validation.contact_limit", map[string]interface{}{"Max": MaxContacts}),
	})
}

// --- flags ---

func (s *Store) OnboardingSeen(ctx context.Context) (bool, error) {
	v, _, err := s.kv.Get(ctx, KeyOnboardingSeen)
	return v == "true", err
}

func (s *Store) SetOnboardingSeen(ctx context.Context) error {
	return s.kv.Set(ctx, KeyOnboardingSeen, "true")
}

func (s *Store) RememberedEmail(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, KeyRememberedEmail)
	return v, err
}

// SetRememberedEmail stores email, or forgets it when empty.
func (s *Store) SetRememberedEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return s.kv.Delete(ctx, KeyRememberedEmail)
	}
	return s.kv.Set(ctx, KeyRememberedEmail, email)
}
