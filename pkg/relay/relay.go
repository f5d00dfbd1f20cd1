// Package relay is the background side of push delivery: it raises a
// notification for each push message and forwards the body to every
// connected foreground context.
package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	i18n "github.com/goliatone/go-i18n"
	"github.com/goliatone/go-pushrelay/pkg/adapters"
	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/translations"
	"github.com/google/uuid"
	"github.com/jaytaylor/html2text"
	"golang.org/x/net/html"
)

// Client is one connected foreground context.
type Client interface {
	ID() string
	PostMessage(ctx context.Context, msg domain.RelayMessage) error
	Focus(ctx context.Context) error
	LastFocused() time.Time
}

// Contexts is the registry of foreground contexts, queried at broadcast time.
type Contexts interface {
	Clients(ctx context.Context) ([]Client, error)
	OpenWindow(ctx context.Context, route string) error
}

// Dependencies wires collaborators into the relay.
type Dependencies struct {
	Notifier   adapters.Notifier
	Contexts   Contexts
	Translator i18n.Translator
	Config     config.RelayConfig
	Locale     string
	Logger     logger.Logger
}

// Report summarises how a single push was handled.
type Report struct {
	Notification domain.Notification
	Delivered    int
	NotifyErr    error
	BroadcastErr error
}

// Relay handles push and notification-click events.
type Relay struct {
	notifier   adapters.Notifier
	contexts   Contexts
	translator i18n.Translator
	cfg        config.RelayConfig
	locale     string
	logger     logger.Logger
}

var (
	errNotifierRequired = errors.New("relay: notifier is required")
	errContextsRequired = errors.New("relay: contexts registry is required")
)

// New constructs the relay.
func New(deps Dependencies) (*Relay, error) {
	if deps.Notifier == nil {
		return nil, errNotifierRequired
	}
	if deps.Contexts == nil {
		return nil, errContextsRequired
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Locale == "" {
		deps.Locale = "en"
	}
	if deps.Config.ClickRoute == "" {
		deps.Config.ClickRoute = "/"
	}
	if deps.Config.FocusPolicy == "" {
		deps.Config.FocusPolicy = config.FocusMostRecent
	}
	return &Relay{
		notifier:   deps.Notifier,
		contexts:   deps.Contexts,
		translator: deps.Translator,
		cfg:        deps.Config,
		locale:     deps.Locale,
		logger:     deps.Logger,
	}, nil
}

// HandlePush shows a notification and broadcasts the body concurrently.
// Both steps complete before it returns; failures are logged, never retried.
func (r *Relay) HandlePush(ctx context.Context, data []byte) Report {
	payload, err := ParseOrDefault(data, domain.PushPayload{})
	if err != nil {
		r.logger.Warn("push payload malformed, using defaults", logger.Field{Key: "error", Value: err})
	}

	n, text := r.resolve(payload)
	report := Report{Notification: n}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := r.notifier.Show(ctx, n); err != nil {
			report.NotifyErr = err
			r.logger.Error("show notification failed", logger.Field{Key: "id", Value: n.ID}, logger.Field{Key: "error", Value: err})
		}
	}()
	go func() {
		defer wg.Done()
		delivered, err := r.broadcast(ctx, domain.RelayMessage{Type: domain.MessageTypePushNotification, Text: text})
		report.Delivered = delivered
		if err != nil {
			report.BroadcastErr = err
			r.logger.Error("broadcast failed", logger.Field{Key: "error", Value: err})
		}
	}()
	wg.Wait()

	r.logger.Debug("push handled",
		logger.Field{Key: "id", Value: n.ID},
		logger.Field{Key: "delivered", Value: report.Delivered},
	)
	return report
}

// HandleNotificationClick closes the notification, then focuses a foreground
// context or opens one at the click route.
func (r *Relay) HandleNotificationClick(ctx context.Context, notificationID string) error {
	if err := r.notifier.Close(ctx, notificationID); err != nil {
		r.logger.Warn("close notification failed", logger.Field{Key: "id", Value: notificationID}, logger.Field{Key: "error", Value: err})
	}

	clients, err := r.contexts.Clients(ctx)
	if err != nil {
		r.logger.Warn("list foreground contexts failed", logger.Field{Key: "error", Value: err})
	}
	if target := r.pickFocus(clients); target != nil {
		err := target.Focus(ctx)
		if err == nil {
			return nil
		}
		r.logger.Warn("focus failed, opening new context", logger.Field{Key: "client", Value: target.ID()}, logger.Field{Key: "error", Value: err})
	}
	return r.contexts.OpenWindow(ctx, r.cfg.ClickRoute)
}

func (r *Relay) pickFocus(clients []Client) Client {
	if len(clients) == 0 {
		return nil
	}
	if r.cfg.FocusPolicy == config.FocusFirst {
		return clients[0]
	}
	best := clients[0]
	for _, c := range clients[1:] {
		if c.LastFocused().After(best.LastFocused()) {
			best = c
		}
	}
	return best
}

// broadcast posts msg to every client; one failing client does not stop the rest.
func (r *Relay) broadcast(ctx context.Context, msg domain.RelayMessage) (int, error) {
	clients, err := r.contexts.Clients(ctx)
	if err != nil {
		return 0, err
	}
	delivered := 0
	var errs []error
	for _, c := range clients {
		if err := c.PostMessage(ctx, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// resolve builds the notification and the text relayed to foreground
// contexts. Only the notification is flattened; the relayed text is the body
// as sent.
func (r *Relay) resolve(payload domain.PushPayload) (domain.Notification, string) {
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = translations.Translate(r.translator, r.locale, translations.KeyDefaultTitle)
	}
	text := strings.TrimSpace(payload.Body)
	if text == "" {
		text = translations.Translate(r.translator, r.locale, translations.KeyDefaultBody)
	}
	return domain.Notification{
		ID:    uuid.NewString(),
		Title: flatten(title),
		Body:  flatten(text),
		Icon:  r.cfg.Icon,
		Badge: r.cfg.Badge,
		Data:  domain.JSONMap{"route": r.cfg.ClickRoute},
	}, text
}

// flatten renders markup as plain text. Values without a known HTML element
// are returned unchanged, entities included.
func flatten(value string) string {
	if !hasMarkup(value) {
		return value
	}
	plain, err := html2text.FromString(value, html2text.Options{})
	if err != nil {
		return value
	}
	if plain = strings.TrimSpace(plain); plain == "" {
		return value
	}
	return plain
}

func hasMarkup(value string) bool {
	if !strings.Contains(value, "<") {
		return false
	}
	z := html.NewTokenizer(strings.NewReader(value))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			if z.Token().DataAtom != 0 {
				return true
			}
		}
	}
}
