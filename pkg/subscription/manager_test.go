package subscription

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/google/uuid"
)

type stubNotifications struct {
	state     domain.PermissionState
	stateErr  error
	requested int
	grant     domain.PermissionState
}

func (s *stubNotifications) Permission(ctx context.Context) (domain.PermissionState, error) {
	return s.state, s.stateErr
}

func (s *stubNotifications) RequestPermission(ctx context.Context) (domain.PermissionState, error) {
	s.requested++
	s.state = s.grant
	return s.state, nil
}

type stubWorkers struct {
	registration Registration
	block        bool
}

func (s *stubWorkers) Ready(ctx context.Context) (Registration, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.registration, nil
}

type stubRegistration struct {
	pm PushManager
}

func (r stubRegistration) PushManager() PushManager { return r.pm }

type stubPushManager struct {
	mu         sync.Mutex
	current    *domain.PushSubscriptionRecord
	subscribes int
	lastOpts   SubscribeOptions
	rejectWith error
}

func (p *stubPushManager) GetSubscription(ctx context.Context) (*domain.PushSubscriptionRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *stubPushManager) Subscribe(ctx context.Context, opts SubscribeOptions) (*domain.PushSubscriptionRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rejectWith != nil {
		return nil, p.rejectWith
	}
	p.subscribes++
	p.lastOpts = opts
	p.current = &domain.PushSubscriptionRecord{
		Endpoint: "https://push.example.com/push/" + uuid.NewString(),
		Keys: domain.SubscriptionKeys{
			P256dh: []byte{0x04, 0x01, 0x02},
			Auth:   []byte{0x0a, 0x0b},
		},
	}
	return p.current, nil
}

func newTestManager(n Notifications, w Workers, key string) *Manager {
	return NewManager(Dependencies{
		Notifications: n,
		Workers:       w,
		Config:        config.PushConfig{VapidPublicKey: key, ReadyTimeout: 50 * time.Millisecond},
	})
}

func TestEnsureSubscriptionEndToEnd(t *testing.T) {
	pm := &stubPushManager{}
	mgr := newTestManager(
		&stubNotifications{state: domain.PermissionGranted},
		&stubWorkers{registration: stubRegistration{pm: pm}},
		"BASE64URLKEYDATA",
	)

	record, err := mgr.EnsureSubscription(context.Background())
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	u, err := url.Parse(record.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		t.Fatalf("endpoint is not a well-formed URL: %q", record.Endpoint)
	}
	if len(record.Keys.P256dh) == 0 || len(record.Keys.Auth) == 0 {
		t.Fatalf("expected non-empty keys")
	}
	if !pm.lastOpts.UserVisibleOnly {
		t.Fatalf("expected user visible only subscription")
	}
	if len(pm.lastOpts.ApplicationServerKey) != 12 {
		t.Fatalf("expected decoded 12 byte key, got %d", len(pm.lastOpts.ApplicationServerKey))
	}
}

func TestEnsureSubscriptionIsIdempotent(t *testing.T) {
	pm := &stubPushManager{}
	mgr := newTestManager(
		&stubNotifications{state: domain.PermissionGranted},
		&stubWorkers{registration: stubRegistration{pm: pm}},
		"BASE64URLKEYDATA",
	)

	first, err := mgr.EnsureSubscription(context.Background())
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := mgr.EnsureSubscription(context.Background())
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first.Endpoint != second.Endpoint {
		t.Fatalf("expected same endpoint, got %q and %q", first.Endpoint, second.Endpoint)
	}
	if pm.subscribes != 1 {
		t.Fatalf("expected exactly one subscription, got %d", pm.subscribes)
	}
}

func TestEnsureSubscriptionConcurrentCallersShareSubscription(t *testing.T) {
	pm := &stubPushManager{}
	mgr := newTestManager(
		&stubNotifications{state: domain.PermissionGranted},
		&stubWorkers{registration: stubRegistration{pm: pm}},
		"BASE64URLKEYDATA",
	)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.EnsureSubscription(context.Background()); err != nil {
				t.Errorf("ensure: %v", err)
			}
		}()
	}
	wg.Wait()
	if pm.subscribes != 1 {
		t.Fatalf("expected exactly one subscription, got %d", pm.subscribes)
	}
}

func TestEnsureSubscriptionPreconditionOrder(t *testing.T) {
	pm := &stubPushManager{}
	ready := &stubWorkers{registration: stubRegistration{pm: pm}}

	cases := []struct {
		name string
		mgr  *Manager
		want error
	}{
		{
			name: "notifications missing",
			mgr:  newTestManager(nil, nil, ""),
			want: &domain.Error{Kind: domain.KindUnsupportedCapability, Capability: domain.CapabilityNotifications},
		},
		{
			name: "permission denied before worker check",
			mgr:  newTestManager(&stubNotifications{state: domain.PermissionDenied}, nil, ""),
			want: domain.ErrPermissionNotGranted,
		},
		{
			name: "permission unknown",
			mgr:  newTestManager(&stubNotifications{state: domain.PermissionUnknown}, ready, "BASE64URLKEYDATA"),
			want: domain.ErrPermissionNotGranted,
		},
		{
			name: "worker missing",
			mgr:  newTestManager(&stubNotifications{state: domain.PermissionGranted}, nil, ""),
			want: &domain.Error{Kind: domain.KindUnsupportedCapability, Capability: domain.CapabilityServiceWorker},
		},
		{
			name: "push manager missing",
			mgr:  newTestManager(&stubNotifications{state: domain.PermissionGranted}, &stubWorkers{registration: stubRegistration{}}, "BASE64URLKEYDATA"),
			want: &domain.Error{Kind: domain.KindUnsupportedCapability, Capability: domain.CapabilityPushManager},
		},
		{
			name: "vapid key missing",
			mgr:  newTestManager(&stubNotifications{state: domain.PermissionGranted}, ready, ""),
			want: domain.ErrMissingConfiguration,
		},
		{
			name: "vapid key malformed",
			mgr:  newTestManager(&stubNotifications{state: domain.PermissionGranted}, ready, "A"),
			want: domain.ErrInvalidKeyEncoding,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.mgr.EnsureSubscription(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if pm.subscribes != 0 {
		t.Fatalf("expected no subscription on failure paths, got %d", pm.subscribes)
	}
}

func TestEnsureSubscriptionKeepsPermissionReadError(t *testing.T) {
	cause := errors.New("permission store unreadable")
	mgr := newTestManager(&stubNotifications{stateErr: cause}, &stubWorkers{}, "BASE64URLKEYDATA")

	_, err := mgr.EnsureSubscription(context.Background())
	if !errors.Is(err, domain.ErrPermissionNotGranted) {
		t.Fatalf("expected permission not granted, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
}

func TestEnsureSubscriptionReusesExistingWithoutKey(t *testing.T) {
	existing := &domain.PushSubscriptionRecord{Endpoint: "https://push.example.com/push/existing"}
	pm := &stubPushManager{current: existing}
	mgr := newTestManager(
		&stubNotifications{state: domain.PermissionGranted},
		&stubWorkers{registration: stubRegistration{pm: pm}},
		"",
	)
	record, err := mgr.EnsureSubscription(context.Background())
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if record.Endpoint != existing.Endpoint {
		t.Fatalf("expected existing endpoint, got %q", record.Endpoint)
	}
}

func TestEnsureSubscriptionReadyTimeout(t *testing.T) {
	mgr := newTestManager(
		&stubNotifications{state: domain.PermissionGranted},
		&stubWorkers{block: true},
		"BASE64URLKEYDATA",
	)
	_, err := mgr.EnsureSubscription(context.Background())
	if !errors.Is(err, domain.ErrSubscriptionFailed) {
		t.Fatalf("expected subscription failed, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded cause, got %v", err)
	}
}

func TestEnsureSubscriptionWrapsRejection(t *testing.T) {
	pm := &stubPushManager{rejectWith: errors.New("push service said no")}
	mgr := newTestManager(
		&stubNotifications{state: domain.PermissionGranted},
		&stubWorkers{registration: stubRegistration{pm: pm}},
		"BASE64URLKEYDATA",
	)
	_, err := mgr.EnsureSubscription(context.Background())
	if !errors.Is(err, domain.ErrSubscriptionFailed) {
		t.Fatalf("expected subscription failed, got %v", err)
	}
}

func TestRequestPermission(t *testing.T) {
	n := &stubNotifications{state: domain.PermissionDenied, grant: domain.PermissionGranted}
	mgr := newTestManager(n, nil, "")

	state, err := mgr.RequestPermission(context.Background())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if state != domain.PermissionGranted || n.requested != 1 {
		t.Fatalf("expected one prompt resulting in granted, got %s after %d", state, n.requested)
	}

	if _, err := mgr.RequestPermission(context.Background()); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if n.requested != 1 {
		t.Fatalf("expected granted permission not to be re-requested")
	}
}

func TestSubscriptionPayload(t *testing.T) {
	pm := &stubPushManager{}
	mgr := newTestManager(
		&stubNotifications{state: domain.PermissionGranted},
		&stubWorkers{registration: stubRegistration{pm: pm}},
		"BASE64URLKEYDATA",
	)
	payload, err := mgr.SubscriptionPayload(context.Background())
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Keys.P256dh != "BAEC" || payload.Keys.Auth != "Cgs" {
		t.Fatalf("unexpected keys %+v", payload.Keys)
	}
	if payload.ExpirationTime != nil {
		t.Fatalf("expected nil expiration")
	}
}
