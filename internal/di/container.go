package di

import (
	"context"
	"errors"
	"reflect"
	"strings"

	i18n "github.com/goliatone/go-i18n"
	"github.com/goliatone/go-pushrelay/pkg/activity"
	"github.com/goliatone/go-pushrelay/pkg/adapters"
	"github.com/goliatone/go-pushrelay/pkg/adapters/console"
	"github.com/goliatone/go-pushrelay/pkg/commands"
	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/eventstore"
	"github.com/goliatone/go-pushrelay/pkg/hub"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/registration"
	"github.com/goliatone/go-pushrelay/pkg/relay"
	"github.com/goliatone/go-pushrelay/pkg/retry"
	"github.com/goliatone/go-pushrelay/pkg/storage"
	"github.com/goliatone/go-pushrelay/pkg/subscription"
	"github.com/goliatone/go-pushrelay/pkg/translations"
	"github.com/goliatone/go-pushrelay/pkg/webpush"
)

// Options configure the DI container.
type Options struct {
	Config     config.Config
	Storage    storage.Providers
	Logger     logger.Logger
	Translator i18n.Translator
	Notifiers  []adapters.Notifier
	Launcher   hub.Launcher
	Prompter   webpush.Prompter
	// Workers overrides readiness; the default treats the push manager as local.
	Workers subscription.Workers
	// DaemonURL makes readiness wait for a daemon's health endpoint.
	DaemonURL string
	Activity  activity.Hooks
}

// Container wires storage, push endpoint, relay, event store and commands.
type Container struct {
	Config        config.Config
	Storage       storage.Providers
	Translator    i18n.Translator
	Push          *webpush.Manager
	Permissions   *webpush.Permissions
	Subscriptions *subscription.Manager
	Hub           *hub.Hub
	Relay         *relay.Relay
	Receiver      *webpush.Receiver
	Events        *eventstore.Store
	Registrar     *registration.Client
	Commands      *commands.Registry
	Activity      activity.Hooks
	Logger        logger.Logger
}

func isZeroConfig(cfg config.Config) bool {
	return reflect.ValueOf(cfg).IsZero()
}

// New constructs the container using the supplied options.
func New(opts Options) (*Container, error) {
	cfg := opts.Config
	if isZeroConfig(cfg) {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	providers := opts.Storage
	if providers.KV == nil {
		providers = storage.NewMemoryProviders()
	}

	lgr := opts.Logger
	if lgr == nil {
		lgr = &logger.Nop{}
	}

	translator := opts.Translator
	if translator == nil {
		t, err := translations.NewTranslator(cfg.Localization.DefaultLocale)
		if err != nil {
			return nil, err
		}
		translator = t
	}

	notifiers := opts.Notifiers
	if len(notifiers) == 0 {
		notifiers = []adapters.Notifier{console.New(lgr)}
	}

	push, err := webpush.NewManager(providers.KV, cfg.Server.PublicURL, webpush.WithLogger(lgr))
	if err != nil {
		return nil, err
	}
	permissions := webpush.NewPermissions(providers.KV, opts.Prompter)

	workers := opts.Workers
	if workers == nil && opts.DaemonURL != "" {
		workers = &webpush.DaemonWorker{
			HealthURL: strings.TrimRight(opts.DaemonURL, "/") + "/healthz",
			Manager:   push,
			Logger:    lgr,
		}
	}
	if workers == nil {
		workers = &webpush.LocalWorker{Manager: push}
	}
	subs := subscription.NewManager(subscription.Dependencies{
		Notifications: permissions,
		Workers:       workers,
		Config:        cfg.Push,
		Logger:        lgr,
	})

	contexts := hub.New(hub.WithLauncher(cfg.Server.PublicURL, opts.Launcher), hub.WithLogger(lgr))

	relaySvc, err := relay.New(relay.Dependencies{
		Notifier:   adapters.NewFanout(notifiers...),
		Contexts:   contexts,
		Translator: translator,
		Config:     cfg.Relay,
		Locale:     cfg.Localization.DefaultLocale,
		Logger:     lgr,
	})
	if err != nil {
		return nil, err
	}

	receiver, err := webpush.NewReceiver(push, webpush.PushHandlerFunc(func(ctx context.Context, data []byte) {
		relaySvc.HandlePush(ctx, data)
	}), webpush.WithReceiverLogger(lgr))
	if err != nil {
		return nil, err
	}

	events, err := eventstore.New(eventstore.Dependencies{
		KV:           providers.KV,
		Logger:       lgr,
		ClearRetries: cfg.Store.ClearRetries,
		Backoff:      retry.ExponentialBackoff{Base: cfg.Store.ClearBackoff, Max: 10 * cfg.Store.ClearBackoff},
	})
	if err != nil {
		return nil, err
	}

	registrar := registration.New(registration.WithTimeout(cfg.Registration.Timeout), registration.WithLogger(lgr))

	cmdRegistry, err := commands.New(commands.Dependencies{
		Permissions:   permissions,
		Subscriptions: subs,
		Registrar:     registrar,
		Events:        events,
		Push:          push,
		KV:            providers.KV,
		Logger:        lgr,
	})
	if err != nil {
		return nil, err
	}

	hooks := opts.Activity
	if len(hooks) == 0 {
		hooks = activity.Hooks{activity.LogHook(lgr)}
	}
	if opts.Launcher == nil {
		lgr.Debug("no launcher configured; notification clicks cannot open new contexts")
	}

	return &Container{
		Config:        cfg,
		Storage:       providers,
		Translator:    translator,
		Push:          push,
		Permissions:   permissions,
		Subscriptions: subs,
		Hub:           contexts,
		Relay:         relaySvc,
		Receiver:      receiver,
		Events:        events,
		Registrar:     registrar,
		Commands:      cmdRegistry,
		Activity:      hooks,
		Logger:        lgr,
	}, nil
}

var errContainerNotInitialised = errors.New("di: container not initialised")

// Close releases storage resources.
func (c *Container) Close() error {
	if c == nil {
		return errContainerNotInitialised
	}
	return c.Storage.Close()
}
