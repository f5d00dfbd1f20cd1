// Package app drives the foreground workflow: permission, scan, events.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	i18n "github.com/goliatone/go-i18n"
	"github.com/goliatone/go-pushrelay/pkg/activity"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/eventstore"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"github.com/goliatone/go-pushrelay/pkg/registration"
	"github.com/goliatone/go-pushrelay/pkg/scanner"
	"github.com/goliatone/go-pushrelay/pkg/translations"
)

// Subscriptions is the slice of the subscription manager the UI needs.
type Subscriptions interface {
	Permission(ctx context.Context) (domain.PermissionState, error)
	RequestPermission(ctx context.Context) (domain.PermissionState, error)
	SubscriptionPayload(ctx context.Context) (domain.SubscriptionPayload, error)
}

// Registrar informs a registration endpoint about the subscription.
type Registrar interface {
	Register(ctx context.Context, target string, payload domain.SubscriptionPayload) error
}

// Events is the foreground event list.
type Events interface {
	Load(ctx context.Context) error
	Items() []domain.EventItem
	Clear(ctx context.Context) error
	Subscribe(ctx context.Context, source eventstore.Source) (unsubscribe func())
}

// Toast is a transient user-facing message.
type Toast struct {
	Key   string
	Text  string
	Error bool
}

// Dependencies wires the controller collaborators.
type Dependencies struct {
	Subscriptions Subscriptions
	Registrar     Registrar
	Events        Events
	KV            store.KV
	Scanner       scanner.Scanner
	Source        eventstore.Source
	Constraint    scanner.Constraint
	Settings      scanner.Settings
	Translator    i18n.Translator
	Locale        string
	Activity      activity.Hooks
	Logger        logger.Logger
	Now           func() time.Time

	// OnState and OnToast are invoked outside the controller lock.
	OnState func(domain.AppState)
	OnToast func(Toast)
}

var (
	ErrInvalidTransition = errors.New("app: invalid transition")
	ErrBusy              = errors.New("app: registration in progress")
)

// Controller is an explicit state machine over domain.AppState.
type Controller struct {
	deps Dependencies

	mu          sync.Mutex
	state       domain.AppState
	busy        bool
	unsubscribe func()
}

func New(deps Dependencies) (*Controller, error) {
	switch {
	case deps.Subscriptions == nil:
		return nil, errors.New("app: subscriptions are required")
	case deps.Registrar == nil:
		return nil, errors.New("app: registrar is required")
	case deps.Events == nil:
		return nil, errors.New("app: events are required")
	case deps.KV == nil:
		return nil, errors.New("app: kv store is required")
	case deps.Scanner == nil:
		return nil, errors.New("app: scanner is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{deps: deps, state: domain.StatePermission}, nil
}

// State returns the current workflow state.
func (c *Controller) State() domain.AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Init loads persisted events and restores the furthest reachable state.
func (c *Controller) Init(ctx context.Context) error {
	if err := c.deps.Events.Load(ctx); err != nil {
		return err
	}
	next := domain.StatePermission
	permission, err := c.deps.Subscriptions.Permission(ctx)
	if err != nil {
		c.deps.Logger.Warn("permission check failed", logger.Field{Key: "error", Value: err})
	}
	if permission == domain.PermissionGranted {
		next = domain.StateScan
		registered, err := c.registered(ctx)
		if err != nil {
			return err
		}
		if registered {
			next = domain.StateEvents
		}
	}
	c.transition(ctx, next)
	return nil
}

// RequestPermission prompts for notification permission from the permission state.
func (c *Controller) RequestPermission(ctx context.Context) error {
	if err := c.expect(domain.StatePermission); err != nil {
		return err
	}
	state, err := c.deps.Subscriptions.RequestPermission(ctx)
	if err != nil || state != domain.PermissionGranted {
		c.deps.Activity.Notify(ctx, activity.Event{Verb: activity.VerbPermissionDenied, Object: string(state)})
		c.toast(translations.KeyPermissionDenied, true)
		if err != nil {
			return err
		}
		return domain.PermissionNotGranted(state)
	}
	c.deps.Activity.Notify(ctx, activity.Event{Verb: activity.VerbPermissionGranted})
	c.toast(translations.KeyPermissionGranted, false)
	c.transition(ctx, domain.StateScan)
	return nil
}

// StartScan opens the scanning view and starts the scanner.
func (c *Controller) StartScan(ctx context.Context) error {
	if err := c.expect(domain.StateScan); err != nil {
		return err
	}
	c.transition(ctx, domain.StateScanning)
	err := c.deps.Scanner.Start(ctx, c.deps.Constraint, c.deps.Settings,
		func(text string) { c.HandleDecoded(ctx, text) },
		func(err error) { c.ScannerFailed(ctx, err) },
	)
	if err != nil && c.State() == domain.StateScanning {
		c.ScannerFailed(ctx, err)
	}
	return err
}

// CancelScan closes the scanning view.
func (c *Controller) CancelScan(ctx context.Context) error {
	if err := c.expect(domain.StateScanning); err != nil {
		return err
	}
	c.deps.Scanner.Stop()
	c.transition(ctx, domain.StateScan)
	return nil
}

// ScannerFailed closes the scanning view after a capture failure.
func (c *Controller) ScannerFailed(ctx context.Context, err error) {
	if c.expect(domain.StateScanning) != nil {
		return
	}
	c.deps.Logger.Warn("scanner failed", logger.Field{Key: "error", Value: err})
	c.deps.Scanner.Stop()
	c.toast(translations.KeyCameraFailed, true)
	c.transition(ctx, domain.StateScan)
}

// HandleDecoded registers with the scanned URL. Anything that is not an
// http(s) URL is rejected without leaving the scanning view.
func (c *Controller) HandleDecoded(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.state != domain.StateScanning {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	target, err := registration.ValidateURL(text)
	if err == nil {
		c.busy = true
	}
	c.mu.Unlock()

	if err != nil {
		c.toast(translations.KeyInvalidQR, true)
		return err
	}
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	payload, err := c.deps.Subscriptions.SubscriptionPayload(ctx)
	if err == nil {
		err = c.deps.Registrar.Register(ctx, target.String(), payload)
	}
	if err != nil {
		c.deps.Activity.Notify(ctx, activity.Event{Verb: activity.VerbRegistrationError, Object: target.Host})
		c.toast(translations.KeyRegistrationFailed, true, err.Error())
		return err
	}

	if err := c.setRegistered(ctx, domain.RegistrationMarker{URL: target.String(), At: c.deps.Now()}); err != nil {
		c.toast(translations.KeyRegistrationFailed, true, err.Error())
		return err
	}
	if c.expect(domain.StateScanning) != nil {
		return nil
	}
	c.deps.Scanner.Stop()
	c.deps.Activity.Notify(ctx, activity.Event{Verb: activity.VerbRegistered, Object: target.Host})
	c.toast(translations.KeyRegistered, false)
	c.transition(ctx, domain.StateEvents)
	return nil
}

// Forget clears the event list and the registration marker.
func (c *Controller) Forget(ctx context.Context) error {
	if err := c.expect(domain.StateEvents); err != nil {
		return err
	}
	if err := c.deps.Events.Clear(ctx); err != nil {
		c.toast(translations.KeyForgetFailed, true, err.Error())
		return err
	}
	if err := c.deps.KV.Delete(ctx, domain.KeyRegistered); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.toast(translations.KeyForgetFailed, true, err.Error())
		return err
	}
	c.deps.Activity.Notify(ctx, activity.Event{Verb: activity.VerbForgotten})
	c.toast(translations.KeyForgotten, false)
	c.transition(ctx, domain.StateScan)
	return nil
}

// Items returns the current event list.
func (c *Controller) Items() []domain.EventItem {
	return c.deps.Events.Items()
}

func (c *Controller) expect(state domain.AppState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != state {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidTransition, c.state, state)
	}
	return nil
}

// transition moves to next and attaches the relay source only while the
// events view is active.
func (c *Controller) transition(ctx context.Context, next domain.AppState) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	var detach func()
	if next != domain.StateEvents && c.unsubscribe != nil {
		detach = c.unsubscribe
		c.unsubscribe = nil
	}
	if next == domain.StateEvents && c.unsubscribe == nil && c.deps.Source != nil {
		c.unsubscribe = c.deps.Events.Subscribe(ctx, c.deps.Source)
	}
	c.mu.Unlock()

	if detach != nil {
		detach()
	}
	if prev != next {
		c.deps.Logger.Debug("app state changed",
			logger.Field{Key: "from", Value: prev},
			logger.Field{Key: "to", Value: next},
		)
	}
	if c.deps.OnState != nil {
		c.deps.OnState(next)
	}
}

// Close detaches from the relay source.
func (c *Controller) Close() {
	c.mu.Lock()
	detach := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if detach != nil {
		detach()
	}
	c.deps.Scanner.Stop()
}

func (c *Controller) toast(key string, isErr bool, args ...any) {
	text := translations.Translate(c.deps.Translator, c.deps.Locale, key, args...)
	if isErr {
		c.deps.Logger.Warn(text)
	}
	if c.deps.OnToast != nil {
		c.deps.OnToast(Toast{Key: key, Text: text, Error: isErr})
	}
}

func (c *Controller) registered(ctx context.Context) (bool, error) {
	_, err := c.deps.KV.Get(ctx, domain.KeyRegistered)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Controller) setRegistered(ctx context.Context, r domain.RegistrationMarker) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.deps.KV.Set(ctx, domain.KeyRegistered, data)
}
