package webpush

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/retry"
	"github.com/goliatone/go-pushrelay/pkg/subscription"
)

type registration struct {
	pm subscription.PushManager
}

func (r registration) PushManager() subscription.PushManager { return r.pm }

// LocalWorker is ready immediately; used inside the daemon process.
type LocalWorker struct {
	Manager subscription.PushManager
}

var _ subscription.Workers = (*LocalWorker)(nil)

func (w *LocalWorker) Ready(ctx context.Context) (subscription.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return registration{pm: w.Manager}, nil
}

// DaemonWorker waits for a running daemon to answer its health endpoint
// before handing out the shared push manager.
type DaemonWorker struct {
	HealthURL string
	Manager   subscription.PushManager
	Client    *http.Client
	Backoff   retry.Backoff
	Logger    logger.Logger
}

var _ subscription.Workers = (*DaemonWorker)(nil)

// Ready polls HealthURL until it returns 200 or ctx ends.
func (w *DaemonWorker) Ready(ctx context.Context) (subscription.Registration, error) {
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	backoff := w.Backoff
	if backoff == nil {
		backoff = retry.ExponentialBackoff{Base: 100 * time.Millisecond, Max: time.Second}
	}
	log := w.Logger
	if log == nil {
		log = &logger.Nop{}
	}

	for attempt := 1; ; attempt++ {
		err := w.probe(ctx, client)
		if err == nil {
			return registration{pm: w.Manager}, nil
		}
		log.Debug("daemon not ready", logger.Field{Key: "attempt", Value: attempt}, logger.Field{Key: "error", Value: err})

		timer := time.NewTimer(backoff.Next(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("webpush: daemon not ready: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (w *DaemonWorker) probe(ctx context.Context, client *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.HealthURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}
