// Package pushrelay is the public entry point: it assembles the push
// endpoint, relay, event store and commands behind one module value.
package pushrelay

import (
	i18n "github.com/goliatone/go-i18n"
	"github.com/goliatone/go-pushrelay/internal/di"
	"github.com/goliatone/go-pushrelay/pkg/activity"
	"github.com/goliatone/go-pushrelay/pkg/adapters"
	"github.com/goliatone/go-pushrelay/pkg/commands"
	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/eventstore"
	"github.com/goliatone/go-pushrelay/pkg/hub"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/registration"
	"github.com/goliatone/go-pushrelay/pkg/relay"
	"github.com/goliatone/go-pushrelay/pkg/storage"
	"github.com/goliatone/go-pushrelay/pkg/subscription"
	"github.com/goliatone/go-pushrelay/pkg/webpush"
)

// ModuleOptions configure the module facade.
type ModuleOptions struct {
	Config     config.Config
	Storage    storage.Providers
	Logger     logger.Logger
	Translator i18n.Translator
	Notifiers  []adapters.Notifier
	Launcher   hub.Launcher
	Prompter   webpush.Prompter
	Workers    subscription.Workers
	DaemonURL  string
	Activity   activity.Hooks
}

// Module bundles the container and exposes high-level accessors.
type Module struct {
	container *di.Container
}

// NewModule assembles storage, push endpoint, relay, event store and commands.
func NewModule(opts ModuleOptions) (*Module, error) {
	container, err := di.New(di.Options{
		Config:     opts.Config,
		Storage:    opts.Storage,
		Logger:     opts.Logger,
		Translator: opts.Translator,
		Notifiers:  opts.Notifiers,
		Launcher:   opts.Launcher,
		Prompter:   opts.Prompter,
		Workers:    opts.Workers,
		DaemonURL:  opts.DaemonURL,
		Activity:   opts.Activity,
	})
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Subscriptions returns the subscription manager.
func (m *Module) Subscriptions() *subscription.Manager {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Subscriptions
}

// Relay returns the background event relay.
func (m *Module) Relay() *relay.Relay {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Relay
}

// Events returns the foreground event store.
func (m *Module) Events() *eventstore.Store {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Events
}

// Hub returns the foreground context registry.
func (m *Module) Hub() *hub.Hub {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Hub
}

// Receiver returns the push endpoint handler.
func (m *Module) Receiver() *webpush.Receiver {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Receiver
}

// Push returns the local push manager owning the subscription keys.
func (m *Module) Push() *webpush.Manager {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Push
}

// Permissions returns the persisted notification permission.
func (m *Module) Permissions() *webpush.Permissions {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Permissions
}

// Registrar returns the registration client.
func (m *Module) Registrar() *registration.Client {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Registrar
}

// Commands returns the go-command registry.
func (m *Module) Commands() *commands.Registry {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Commands
}

// Config returns the effective module configuration.
func (m *Module) Config() config.Config {
	if m == nil || m.container == nil {
		return config.Config{}
	}
	return m.container.Config
}

// Container returns the internal DI container.
// This is exposed for advanced use cases like direct storage access.
func (m *Module) Container() *di.Container {
	if m == nil {
		return nil
	}
	return m.container
}

// Close releases storage resources.
func (m *Module) Close() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close()
}
