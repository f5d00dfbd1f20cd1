// Package desktop raises notifications through the host notification daemon.
package desktop

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/goliatone/go-pushrelay/pkg/adapters"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
)

// Runner executes a command; replaced in tests.
type Runner func(ctx context.Context, name string, args ...string) error

// Adapter shells out to notify-send (linux) or osascript (darwin).
type Adapter struct {
	base   adapters.BaseAdapter
	goos   string
	run    Runner
	appKey string
}

type Option func(*Adapter)

func WithRunner(r Runner) Option {
	return func(a *Adapter) {
		if r != nil {
			a.run = r
		}
	}
}

func WithOS(goos string) Option {
	return func(a *Adapter) {
		if goos != "" {
			a.goos = goos
		}
	}
}

func New(l logger.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		base:   adapters.NewBaseAdapter(l),
		goos:   runtime.GOOS,
		run:    runCommand,
		appKey: "pushrelay",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

var _ adapters.Notifier = (*Adapter)(nil)

func (a *Adapter) Name() string { return "desktop" }

func (a *Adapter) Show(ctx context.Context, n domain.Notification) error {
	var err error
	switch a.goos {
	case "linux":
		args := []string{"--app-name", a.appKey}
		if n.Icon != "" {
			args = append(args, "--icon", n.Icon)
		}
		args = append(args, n.Title, n.Body)
		err = a.run(ctx, "notify-send", args...)
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", n.Body, n.Title)
		err = a.run(ctx, "osascript", "-e", script)
	default:
		err = fmt.Errorf("desktop: unsupported OS: %s", a.goos)
	}
	if err != nil {
		a.base.LogFailure(a.Name(), n, err)
		return err
	}
	a.base.LogSuccess(a.Name(), n)
	return nil
}

// Close is a no-op; host daemons dismiss notifications on click.
func (a *Adapter) Close(ctx context.Context, id string) error { return nil }

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
