// Package subscription owns notification permission checks and the
// acquisition/reuse of the single push subscription of this profile.
package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/secrets"
	"github.com/goliatone/go-pushrelay/pkg/vapid"
)

// Notifications is the notification capability of the runtime.
type Notifications interface {
	Permission(ctx context.Context) (domain.PermissionState, error)
	// RequestPermission prompts the user. Only UI actions may call it.
	RequestPermission(ctx context.Context) (domain.PermissionState, error)
}

// Workers is the background-worker capability of the runtime.
type Workers interface {
	// Ready blocks until the background worker is active.
	Ready(ctx context.Context) (Registration, error)
}

// Registration is an active background-worker registration.
type Registration interface {
	// PushManager returns nil when push is unavailable on the registration.
	PushManager() PushManager
}

// PushManager issues and looks up push subscriptions.
type PushManager interface {
	// GetSubscription returns nil, nil when no live subscription exists.
	GetSubscription(ctx context.Context) (*domain.PushSubscriptionRecord, error)
	Subscribe(ctx context.Context, opts SubscribeOptions) (*domain.PushSubscriptionRecord, error)
}

// SubscribeOptions mirrors the push subscribe options.
type SubscribeOptions struct {
	UserVisibleOnly      bool
	ApplicationServerKey []byte
}

// Dependencies wires runtime capabilities into the manager. A nil capability
// is reported as unsupported.
type Dependencies struct {
	Notifications Notifications
	Workers       Workers
	Config        config.PushConfig
	Logger        logger.Logger
}

// Manager ensures exactly one push subscription exists.
type Manager struct {
	notifications Notifications
	workers       Workers
	vapidKey      string
	readyTimeout  time.Duration
	logger        logger.Logger
	sem           chan struct{}
}

const defaultReadyTimeout = 10 * time.Second

// NewManager constructs the subscription manager.
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	timeout := deps.Config.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	return &Manager{
		notifications: deps.Notifications,
		workers:       deps.Workers,
		vapidKey:      deps.Config.VapidPublicKey,
		readyTimeout:  timeout,
		logger:        deps.Logger,
		sem:           make(chan struct{}, 1),
	}
}

// Permission reports the current permission without prompting.
func (m *Manager) Permission(ctx context.Context) (domain.PermissionState, error) {
	if m.notifications == nil {
		return domain.PermissionUnknown, domain.UnsupportedCapability(domain.CapabilityNotifications)
	}
	return m.notifications.Permission(ctx)
}

// RequestPermission prompts for permission unless it is already granted.
func (m *Manager) RequestPermission(ctx context.Context) (domain.PermissionState, error) {
	current, err := m.Permission(ctx)
	if err != nil {
		return current, err
	}
	if current == domain.PermissionGranted {
		return current, nil
	}
	state, err := m.notifications.RequestPermission(ctx)
	if err != nil {
		return domain.PermissionUnknown, err
	}
	m.logger.Info("notification permission requested", logger.Field{Key: "state", Value: state})
	return state, nil
}

// EnsureSubscription returns the live subscription, creating it when absent.
// Concurrent callers are serialized.
func (m *Manager) EnsureSubscription(ctx context.Context) (*domain.PushSubscriptionRecord, error) {
	if m.notifications == nil {
		return nil, domain.UnsupportedCapability(domain.CapabilityNotifications)
	}
	state, err := m.notifications.Permission(ctx)
	if err != nil {
		return nil, domain.PermissionCheckFailed(err)
	}
	if state != domain.PermissionGranted {
		return nil, domain.PermissionNotGranted(state)
	}
	if m.workers == nil {
		return nil, domain.UnsupportedCapability(domain.CapabilityServiceWorker)
	}

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, domain.SubscriptionFailed(ctx.Err())
	}
	defer func() { <-m.sem }()

	readyCtx, cancel := context.WithTimeout(ctx, m.readyTimeout)
	registration, err := m.workers.Ready(readyCtx)
	cancel()
	if err != nil {
		return nil, domain.SubscriptionFailed(err)
	}

	pm := registration.PushManager()
	if pm != nil {
		existing, err := pm.GetSubscription(ctx)
		if err != nil {
			return nil, domain.SubscriptionFailed(err)
		}
		if existing != nil {
			m.logger.Debug("reusing push subscription", logger.Field{Key: "endpoint", Value: secrets.Mask(existing.Endpoint)})
			return existing, nil
		}
	}

	if pm == nil {
		return nil, domain.UnsupportedCapability(domain.CapabilityPushManager)
	}
	if m.vapidKey == "" {
		return nil, domain.MissingConfiguration("push.vapid_public_key")
	}
	key, err := vapid.DecodeKey(m.vapidKey)
	if err != nil {
		return nil, err
	}

	record, err := pm.Subscribe(ctx, SubscribeOptions{
		UserVisibleOnly:      true,
		ApplicationServerKey: key,
	})
	if err != nil {
		if kind, ok := domain.KindOf(err); ok && kind == domain.KindSubscriptionFailed {
			return nil, err
		}
		return nil, domain.SubscriptionFailed(err)
	}
	if record == nil {
		return nil, domain.SubscriptionFailed(errors.New("push manager returned no subscription"))
	}
	m.logger.Info("push subscription created", logger.Field{Key: "endpoint", Value: secrets.Mask(record.Endpoint)})
	return record, nil
}

// SubscriptionPayload returns the JSON form sent to registration endpoints.
func (m *Manager) SubscriptionPayload(ctx context.Context) (domain.SubscriptionPayload, error) {
	record, err := m.EnsureSubscription(ctx)
	if err != nil {
		return domain.SubscriptionPayload{}, err
	}
	return record.Payload(), nil
}
