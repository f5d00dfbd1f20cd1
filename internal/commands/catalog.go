package commands

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
)

// Catalog exposes go-command compatible handlers for the CLI and daemon.
type Catalog struct {
	SetPermission     command.Commander[SetPermission]
	RequestPermission command.Commander[RequestPermission]
	Register          command.Commander[Register]
	Forget            command.Commander[Forget]
	AppendEvent       command.Commander[AppendEvent]
	Unsubscribe       command.Commander[Unsubscribe]
}

type permissionService interface {
	Set(ctx context.Context, state domain.PermissionState) error
}

type subscriptionService interface {
	RequestPermission(ctx context.Context) (domain.PermissionState, error)
	SubscriptionPayload(ctx context.Context) (domain.SubscriptionPayload, error)
}

type registrar interface {
	Register(ctx context.Context, target string, payload domain.SubscriptionPayload) error
}

type eventService interface {
	Append(ctx context.Context, text string) (domain.EventItem, error)
	Clear(ctx context.Context) error
}

type unsubscriber interface {
	Unsubscribe(ctx context.Context) error
}

// Dependencies wires services into the command catalog.
type Dependencies struct {
	Permissions   permissionService
	Subscriptions subscriptionService
	Registrar     registrar
	Events        eventService
	Push          unsubscriber
	KV            store.KV
	Logger        logger.Logger
}

// NewCatalog builds the command catalog using the supplied dependencies.
func NewCatalog(deps Dependencies) (*Catalog, error) {
	if deps.Permissions == nil {
		return nil, errors.New("commands: permissions service is required")
	}
	if deps.Subscriptions == nil {
		return nil, errors.New("commands: subscription service is required")
	}
	if deps.Registrar == nil {
		return nil, errors.New("commands: registrar is required")
	}
	if deps.Events == nil {
		return nil, errors.New("commands: events service is required")
	}
	if deps.Push == nil {
		return nil, errors.New("commands: push manager is required")
	}
	if deps.KV == nil {
		return nil, errors.New("commands: kv store is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}

	return &Catalog{
		SetPermission:     setPermissionCommand{svc: deps.Permissions},
		RequestPermission: requestPermissionCommand{svc: deps.Subscriptions},
		Register:          registerCommand{subs: deps.Subscriptions, registrar: deps.Registrar, kv: deps.KV, logger: deps.Logger, now: time.Now},
		Forget:            forgetCommand{events: deps.Events, kv: deps.KV},
		AppendEvent:       appendEventCommand{events: deps.Events},
		Unsubscribe:       unsubscribeCommand{push: deps.Push, kv: deps.KV},
	}, nil
}

// SetPermission records an explicit grant or denial.
type SetPermission struct {
	State domain.PermissionState `json:"state"`
}

type setPermissionCommand struct {
	svc permissionService
}

func (c setPermissionCommand) Execute(ctx context.Context, msg SetPermission) error {
	switch msg.State {
	case domain.PermissionGranted, domain.PermissionDenied:
		return c.svc.Set(ctx, msg.State)
	default:
		return errors.New("commands: permission state must be granted or denied")
	}
}

// RequestPermission runs the interactive prompt.
type RequestPermission struct{}

type requestPermissionCommand struct {
	svc subscriptionService
}

func (c requestPermissionCommand) Execute(ctx context.Context, _ RequestPermission) error {
	state, err := c.svc.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if state != domain.PermissionGranted {
		return domain.PermissionNotGranted(state)
	}
	return nil
}

// Register informs the endpoint at URL about the subscription.
type Register struct {
	URL string `json:"url"`
}

type registerCommand struct {
	subs      subscriptionService
	registrar registrar
	kv        store.KV
	logger    logger.Logger
	now       func() time.Time
}

func (c registerCommand) Execute(ctx context.Context, msg Register) error {
	target := strings.TrimSpace(msg.URL)
	if target == "" {
		return errors.New("commands: registration url is required")
	}
	payload, err := c.subs.SubscriptionPayload(ctx)
	if err != nil {
		return err
	}
	if err := c.registrar.Register(ctx, target, payload); err != nil {
		return err
	}
	marker, err := json.Marshal(domain.RegistrationMarker{URL: target, At: c.now()})
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, domain.KeyRegistered, marker); err != nil {
		c.logger.Warn("registration marker not saved", logger.Field{Key: "error", Value: err})
	}
	return nil
}

// Forget clears the event list and the registration marker.
type Forget struct{}

type forgetCommand struct {
	events eventService
	kv     store.KV
}

func (c forgetCommand) Execute(ctx context.Context, _ Forget) error {
	if err := c.events.Clear(ctx); err != nil {
		return err
	}
	if err := c.kv.Delete(ctx, domain.KeyRegistered); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// AppendEvent records an event by hand, e.g. from a script.
type AppendEvent struct {
	Text string `json:"text"`
}

type appendEventCommand struct {
	events eventService
}

func (c appendEventCommand) Execute(ctx context.Context, msg AppendEvent) error {
	if strings.TrimSpace(msg.Text) == "" {
		return errors.New("commands: event text is required")
	}
	_, err := c.events.Append(ctx, msg.Text)
	return err
}

// Unsubscribe drops the push subscription and the registration marker.
type Unsubscribe struct{}

type unsubscribeCommand struct {
	push unsubscriber
	kv   store.KV
}

func (c unsubscribeCommand) Execute(ctx context.Context, _ Unsubscribe) error {
	if err := c.push.Unsubscribe(ctx); err != nil {
		return err
	}
	if err := c.kv.Delete(ctx, domain.KeyRegistered); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
