package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/commands"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/pushrelay"
	"github.com/goliatone/go-pushrelay/pkg/registration"
)

// EventsCmd prints the persisted event list, newest first.
type EventsCmd struct {
	JSON bool `help:"Print as JSON."`
}

func (c *EventsCmd) Run(rt *runtime) error {
	mod, err := rt.module(pushrelay.ModuleOptions{})
	if err != nil {
		return err
	}
	defer mod.Close()

	events := mod.Events()
	if err := events.Load(rt.ctx); err != nil {
		return err
	}
	items := events.Items()
	if c.JSON {
		enc := json.NewEncoder(rt.out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(rt.out, "no events")
		return nil
	}
	for _, item := range items {
		at := time.UnixMilli(item.Timestamp).Local().Format(time.DateTime)
		fmt.Fprintf(rt.out, "%s  %s\n", at, item.Text)
	}
	return nil
}

// AppendCmd records an event without a push.
type AppendCmd struct {
	Text string `arg:"" help:"Event text."`
}

func (c *AppendCmd) Run(rt *runtime) error {
	mod, err := rt.module(pushrelay.ModuleOptions{})
	if err != nil {
		return err
	}
	defer mod.Close()
	// Append prepends to the in-memory list, so read the persisted one first.
	if err := mod.Events().Load(rt.ctx); err != nil {
		return err
	}
	return mod.Commands().AppendEvent.Execute(rt.ctx, commands.AppendEvent{Text: c.Text})
}

// ForgetCmd clears events and the registration marker.
type ForgetCmd struct{}

func (c *ForgetCmd) Run(rt *runtime) error {
	mod, err := rt.module(pushrelay.ModuleOptions{})
	if err != nil {
		return err
	}
	defer mod.Close()
	if err := mod.Commands().Forget.Execute(rt.ctx, commands.Forget{}); err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "events cleared")
	return nil
}

// RegisterCmd subscribes through the running daemon and posts the
// subscription to URL.
type RegisterCmd struct {
	URL string `arg:"" help:"Registration endpoint (http or https)."`
}

func (c *RegisterCmd) Run(rt *runtime) error {
	if _, err := registration.ValidateURL(c.URL); err != nil {
		return err
	}
	mod, err := rt.module(pushrelay.ModuleOptions{DaemonURL: rt.cfg.Server.PublicURL})
	if err != nil {
		return err
	}
	defer mod.Close()
	if err := mod.Commands().Register.Execute(rt.ctx, commands.Register{URL: c.URL}); err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "registered with %s\n", c.URL)
	return nil
}

// UnsubscribeCmd drops the stored subscription.
type UnsubscribeCmd struct{}

func (c *UnsubscribeCmd) Run(rt *runtime) error {
	mod, err := rt.module(pushrelay.ModuleOptions{})
	if err != nil {
		return err
	}
	defer mod.Close()
	return mod.Commands().Unsubscribe.Execute(rt.ctx, commands.Unsubscribe{})
}

// PermissionCmd groups permission subcommands.
type PermissionCmd struct {
	Show  PermissionShowCmd  `cmd:"" default:"1" help:"Print the current permission."`
	Grant PermissionGrantCmd `cmd:"" help:"Allow notifications."`
	Deny  PermissionDenyCmd  `cmd:"" help:"Refuse notifications."`
}

type PermissionShowCmd struct{}

func (c *PermissionShowCmd) Run(rt *runtime) error {
	mod, err := rt.module(pushrelay.ModuleOptions{})
	if err != nil {
		return err
	}
	defer mod.Close()
	state, err := mod.Permissions().Permission(rt.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.out, state)
	return nil
}

type PermissionGrantCmd struct{}

func (c *PermissionGrantCmd) Run(rt *runtime) error {
	return setPermission(rt, domain.PermissionGranted)
}

type PermissionDenyCmd struct{}

func (c *PermissionDenyCmd) Run(rt *runtime) error {
	return setPermission(rt, domain.PermissionDenied)
}

func setPermission(rt *runtime, state domain.PermissionState) error {
	mod, err := rt.module(pushrelay.ModuleOptions{})
	if err != nil {
		return err
	}
	defer mod.Close()
	if err := mod.Commands().SetPermission.Execute(rt.ctx, commands.SetPermission{State: state}); err != nil {
		return err
	}
	fmt.Fprintln(rt.out, state)
	return nil
}
