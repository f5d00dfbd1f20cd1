package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/pushrelay"
	"github.com/goliatone/go-pushrelay/pkg/storage"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// CLI is the kong command tree.
type CLI struct {
	Config  string           `short:"c" type:"path" env:"PUSHRELAY_CONFIG" help:"YAML config file."`
	Version kong.VersionFlag `help:"Print version and exit."`

	Daemon      DaemonCmd      `cmd:"" help:"Run the push endpoint and notification relay."`
	UI          UICmd          `cmd:"" name:"ui" help:"Open the event tracker."`
	Events      EventsCmd      `cmd:"" help:"Print stored events."`
	Append      AppendCmd      `cmd:"" help:"Record an event by hand."`
	Forget      ForgetCmd      `cmd:"" help:"Clear stored events and the registration marker."`
	Register    RegisterCmd    `cmd:"" help:"Send the push subscription to a registration URL."`
	Unsubscribe UnsubscribeCmd `cmd:"" help:"Drop the push subscription."`
	Permission  PermissionCmd  `cmd:"" help:"Inspect or set the notification permission."`
}

// runtime carries what every command needs.
type runtime struct {
	ctx    context.Context
	cfg    config.Config
	logger logger.Logger
	out    io.Writer
}

// module opens storage and assembles the module; closing the module
// releases storage.
func (rt *runtime) module(opts pushrelay.ModuleOptions) (*pushrelay.Module, error) {
	providers, err := storage.Open(rt.ctx, rt.cfg.Store, rt.logger)
	if err != nil {
		return nil, err
	}
	opts.Config = rt.cfg
	opts.Storage = providers
	if opts.Logger == nil {
		opts.Logger = rt.logger
	}
	mod, err := pushrelay.NewModule(opts)
	if err != nil {
		providers.Close()
		return nil, err
	}
	return mod, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("pushrelay"),
		kong.Description("Push subscription client: relays push events to open contexts and keeps an event list."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, kctx, cli.Config); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, kctx *kong.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	rt := &runtime{
		ctx:    ctx,
		cfg:    cfg,
		logger: newLogger(cfg.Logging, os.Stderr),
		out:    os.Stdout,
	}
	return kctx.Run(rt)
}
