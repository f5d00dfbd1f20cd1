// Package webpush is the self-hosted push service side of a subscription:
// it issues key material, persists it, and opens incoming push messages.
package webpush

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"github.com/goliatone/go-pushrelay/pkg/secrets"
	"github.com/goliatone/go-pushrelay/pkg/subscription"
	"github.com/google/uuid"
)

// ErrInvalidServerKey is returned for application server keys that are not
// uncompressed P-256 points.
var ErrInvalidServerKey = errors.New("webpush: application server key must be a 65-byte uncompressed P-256 point")

// StoredSubscription is the persisted form of the subscription, including the
// private half of the p256dh key pair.
type StoredSubscription struct {
	ID                   string     `json:"id"`
	Endpoint             string     `json:"endpoint"`
	ExpirationTime       *time.Time `json:"expiration_time,omitempty"`
	P256dh               []byte     `json:"p256dh"`
	Auth                 []byte     `json:"auth"`
	PrivateKey           []byte     `json:"private_key"`
	ApplicationServerKey []byte     `json:"application_server_key"`
	UserVisibleOnly      bool       `json:"user_visible_only"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Record returns the public part handed to application servers.
func (s StoredSubscription) Record() *domain.PushSubscriptionRecord {
	return &domain.PushSubscriptionRecord{
		Endpoint:       s.Endpoint,
		ExpirationTime: s.ExpirationTime,
		Keys: domain.SubscriptionKeys{
			P256dh: append([]byte(nil), s.P256dh...),
			Auth:   append([]byte(nil), s.Auth...),
		},
	}
}

func (s StoredSubscription) privateKey() (*ecdh.PrivateKey, error) {
	return ecdh.P256().NewPrivateKey(s.PrivateKey)
}

// Manager issues and looks up the single subscription of this profile.
type Manager struct {
	kv        store.KV
	publicURL string
	lifetime  time.Duration
	logger    logger.Logger
	now       func() time.Time
	mu        sync.Mutex
}

var _ subscription.PushManager = (*Manager)(nil)

type ManagerOption func(*Manager)

// WithLifetime gives new subscriptions an expiration time.
func WithLifetime(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.lifetime = d
	}
}

func WithLogger(l logger.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

var (
	errKVRequired        = errors.New("webpush: kv store is required")
	errPublicURLRequired = errors.New("webpush: public url is required")
)

// NewManager builds a manager issuing endpoints under publicURL/push/.
func NewManager(kv store.KV, publicURL string, opts ...ManagerOption) (*Manager, error) {
	if kv == nil {
		return nil, errKVRequired
	}
	if _, err := Origin(publicURL); err != nil {
		return nil, errPublicURLRequired
	}
	m := &Manager{
		kv:        kv,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    &logger.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// GetSubscription returns the persisted subscription, or nil when none is
// stored or it has expired.
func (m *Manager) GetSubscription(ctx context.Context) (*domain.PushSubscriptionRecord, error) {
	stored, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	record := stored.Record()
	if record.Expired(m.now()) {
		return nil, nil
	}
	return record, nil
}

// Subscribe creates and persists a new subscription.
func (m *Manager) Subscribe(ctx context.Context, opts subscription.SubscribeOptions) (*domain.PushSubscriptionRecord, error) {
	if !opts.UserVisibleOnly {
		return nil, domain.SubscriptionFailed(errors.New("webpush: only user-visible subscriptions are supported"))
	}
	if _, err := ecdh.P256().NewPublicKey(opts.ApplicationServerKey); err != nil {
		return nil, domain.SubscriptionFailed(fmt.Errorf("%w: %v", ErrInvalidServerKey, err))
	}

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, domain.SubscriptionFailed(err)
	}
	auth := make([]byte, authSize)
	if _, err := rand.Read(auth); err != nil {
		return nil, domain.SubscriptionFailed(err)
	}

	id := uuid.NewString()
	now := m.now().UTC()
	stored := StoredSubscription{
		ID:                   id,
		Endpoint:             m.publicURL + "/push/" + id,
		P256dh:               priv.PublicKey().Bytes(),
		Auth:                 auth,
		PrivateKey:           priv.Bytes(),
		ApplicationServerKey: append([]byte(nil), opts.ApplicationServerKey...),
		UserVisibleOnly:      true,
		CreatedAt:            now,
	}
	if m.lifetime > 0 {
		exp := now.Add(m.lifetime)
		stored.ExpirationTime = &exp
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, domain.SubscriptionFailed(err)
	}
	m.mu.Lock()
	err = m.kv.Set(ctx, domain.KeySubscription, raw)
	m.mu.Unlock()
	if err != nil {
		return nil, domain.SubscriptionFailed(err)
	}
	m.logger.Info("push subscription stored",
		logger.Field{Key: "id", Value: id},
		logger.Field{Key: "endpoint", Value: secrets.Mask(stored.Endpoint)},
	)
	return stored.Record(), nil
}

// Unsubscribe removes the persisted subscription.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kv.Delete(ctx, domain.KeySubscription)
}

// Load returns the full persisted subscription, or nil when absent.
func (m *Manager) Load(ctx context.Context) (*StoredSubscription, error) {
	raw, err := m.kv.Get(ctx, domain.KeySubscription)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("webpush: read subscription: %w", err)
	}
	var stored StoredSubscription
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("webpush: decode subscription: %w", err)
	}
	return &stored, nil
}
