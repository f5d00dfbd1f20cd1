package commands

import (
	command "github.com/goliatone/go-command"
	internalcommands "github.com/goliatone/go-pushrelay/internal/commands"
	"github.com/goliatone/go-pushrelay/pkg/eventstore"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"github.com/goliatone/go-pushrelay/pkg/registration"
	"github.com/goliatone/go-pushrelay/pkg/subscription"
	"github.com/goliatone/go-pushrelay/pkg/webpush"
)

// Re-export request types so consumers need not import internal packages.
type (
	SetPermission     = internalcommands.SetPermission
	RequestPermission = internalcommands.RequestPermission
	Register          = internalcommands.Register
	Forget            = internalcommands.Forget
	AppendEvent       = internalcommands.AppendEvent
	Unsubscribe       = internalcommands.Unsubscribe
)

// Registry exposes go-command compatible handlers backed by the module services.
type Registry struct {
	Catalog           *internalcommands.Catalog
	SetPermission     command.Commander[SetPermission]
	RequestPermission command.Commander[RequestPermission]
	Register          command.Commander[Register]
	Forget            command.Commander[Forget]
	AppendEvent       command.Commander[AppendEvent]
	Unsubscribe       command.Commander[Unsubscribe]
}

// Dependencies mirror the internal command dependencies but keep them public.
type Dependencies struct {
	Permissions   *webpush.Permissions
	Subscriptions *subscription.Manager
	Registrar     *registration.Client
	Events        *eventstore.Store
	Push          *webpush.Manager
	KV            store.KV
	Logger        logger.Logger
}

// New builds the registry using the provided dependencies.
func New(deps Dependencies) (*Registry, error) {
	in := internalcommands.Dependencies{KV: deps.KV, Logger: deps.Logger}
	// Typed nils must stay nil interfaces so the catalog reports them.
	if deps.Permissions != nil {
		in.Permissions = deps.Permissions
	}
	if deps.Subscriptions != nil {
		in.Subscriptions = deps.Subscriptions
	}
	if deps.Registrar != nil {
		in.Registrar = deps.Registrar
	}
	if deps.Events != nil {
		in.Events = deps.Events
	}
	if deps.Push != nil {
		in.Push = deps.Push
	}
	catalog, err := internalcommands.NewCatalog(in)
	if err != nil {
		return nil, err
	}
	return &Registry{
		Catalog:           catalog,
		SetPermission:     catalog.SetPermission,
		RequestPermission: catalog.RequestPermission,
		Register:          catalog.Register,
		Forget:            catalog.Forget,
		AppendEvent:       catalog.AppendEvent,
		Unsubscribe:       catalog.Unsubscribe,
	}, nil
}

// Commanders returns every handler so callers can register them with go-command registries.
func (r *Registry) Commanders() []any {
	if r == nil {
		return nil
	}
	return []any{
		r.SetPermission,
		r.RequestPermission,
		r.Register,
		r.Forget,
		r.AppendEvent,
		r.Unsubscribe,
	}
}
