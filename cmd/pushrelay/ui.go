package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/goliatone/go-pushrelay/internal/tui"
	"github.com/goliatone/go-pushrelay/pkg/app"
	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/hub"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/pushrelay"
	"github.com/goliatone/go-pushrelay/pkg/scanner"
)

// UICmd runs the foreground event tracker against a running daemon.
type UICmd struct{}

func (c *UICmd) Run(rt *runtime) error {
	ctx, cancel := context.WithCancel(rt.ctx)
	defer cancel()

	cfg := rt.cfg
	logFile, err := openLogFile(cfg.Logging.File)
	if err != nil {
		return err
	}
	defer logFile.Close()
	lgr := newLogger(cfg.Logging, logFile)

	// The terminal belongs to the UI; stdin cannot double as a scanner.
	if cfg.Scanner.Source == config.ScannerStdin {
		lgr.Warn("stdin scanner unavailable in the ui, using clipboard")
		cfg.Scanner.Source = config.ScannerClipboard
	}

	uiRT := &runtime{ctx: ctx, cfg: cfg, logger: lgr, out: rt.out}
	mod, err := uiRT.module(pushrelay.ModuleOptions{
		// The permission screen is the prompt: confirming it grants.
		Prompter:  func(context.Context) (bool, error) { return true, nil },
		DaemonURL: cfg.Server.PublicURL,
	})
	if err != nil {
		return err
	}
	defer mod.Close()

	remote, err := hub.Dial(ctx, wsURL(cfg.Server.PublicURL), lgr)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s (start it with `pushrelay daemon`): %w", cfg.Server.PublicURL, err)
	}
	defer remote.Close()
	remote.OnFocus(func() {
		if err := remote.Focused(ctx); err != nil {
			lgr.Debug("focus ack failed", logger.Field{Key: "error", Value: err})
		}
	})
	if err := remote.Focused(ctx); err != nil {
		lgr.Debug("focus ack failed", logger.Field{Key: "error", Value: err})
	}

	sc, err := scanner.New(cfg.Scanner, scanner.WithLogger(lgr))
	if err != nil {
		return err
	}
	constraint, settings := scanner.FromConfig(cfg.Scanner)

	var bridge tui.Bridge
	container := mod.Container()
	ctrl, err := app.New(app.Dependencies{
		Subscriptions: mod.Subscriptions(),
		Registrar:     mod.Registrar(),
		Events:        mod.Events(),
		KV:            container.Storage.KV,
		Scanner:       sc,
		Source:        remote,
		Constraint:    constraint,
		Settings:      settings,
		Translator:    container.Translator,
		Locale:        cfg.Localization.DefaultLocale,
		Activity:      container.Activity,
		Logger:        lgr,
		OnState:       bridge.OnState,
		OnToast:       bridge.OnToast,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	events := mod.Events()
	removeListener := events.OnChange(bridge.OnItems)
	defer removeListener()
	if watcher := container.Storage.Watcher; watcher != nil {
		go func() {
			if err := events.Watch(ctx, watcher); err != nil && !errors.Is(err, context.Canceled) {
				lgr.Warn("event watch stopped", logger.Field{Key: "error", Value: err})
			}
		}()
	}

	go func() {
		select {
		case <-remote.Done():
			lgr.Warn("daemon connection closed", logger.Field{Key: "error", Value: remote.Err()})
			bridge.OnToast(app.Toast{Text: "Lost connection to the daemon", Error: true})
		case <-ctx.Done():
		}
	}()

	if err := ctrl.Init(ctx); err != nil {
		return err
	}

	err = tui.Run(ctx, ctrl, &bridge)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// wsURL maps the daemon's public http(s) URL to its context socket.
func wsURL(publicURL string) string {
	base := strings.TrimRight(publicURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/contexts/ws"
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "pushrelay-ui.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
