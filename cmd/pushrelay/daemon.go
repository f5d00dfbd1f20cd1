package main

import (
	"github.com/goliatone/go-pushrelay/internal/browser"
	"github.com/goliatone/go-pushrelay/internal/server"
	"github.com/goliatone/go-pushrelay/pkg/adapters"
	"github.com/goliatone/go-pushrelay/pkg/adapters/console"
	"github.com/goliatone/go-pushrelay/pkg/adapters/desktop"
	"github.com/goliatone/go-pushrelay/pkg/hub"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/pushrelay"
)

// DaemonCmd hosts the push endpoint, the context hub and the relay.
type DaemonCmd struct {
	Addr   string `help:"Listen address; overrides server.addr."`
	NoOpen bool   `help:"Never open a browser for notification clicks."`
	Quiet  bool   `help:"Log notifications instead of raising desktop ones."`
}

func (c *DaemonCmd) Run(rt *runtime) error {
	addr := rt.cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}

	notifiers := []adapters.Notifier{console.New(rt.logger)}
	if !c.Quiet {
		notifiers = append(notifiers, desktop.New(rt.logger))
	}
	var launcher hub.Launcher
	if !c.NoOpen {
		launcher = browser.Open
	}

	mod, err := rt.module(pushrelay.ModuleOptions{
		Notifiers: notifiers,
		Launcher:  launcher,
	})
	if err != nil {
		return err
	}
	defer mod.Close()

	srv, err := server.New(server.Dependencies{
		Push:     mod.Receiver(),
		Contexts: mod.Hub(),
		Clicks:   mod.Relay(),
		Events:   mod.Events(),
		Logger:   rt.logger,
	})
	if err != nil {
		return err
	}

	rt.logger.Info("daemon listening",
		logger.Field{Key: "addr", Value: addr},
		logger.Field{Key: "public_url", Value: rt.cfg.Server.PublicURL},
		logger.Field{Key: "store", Value: rt.cfg.Store.Driver},
	)
	return srv.Run(rt.ctx, addr)
}
