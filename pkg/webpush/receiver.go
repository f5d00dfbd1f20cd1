package webpush

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
)

// MaxPayloadSize bounds request bodies; RFC 8030 requires at least 4096.
const MaxPayloadSize = 8192

// PushHandler consumes decrypted push messages.
type PushHandler interface {
	HandlePush(ctx context.Context, data []byte)
}

// PushHandlerFunc adapts a function to PushHandler.
type PushHandlerFunc func(ctx context.Context, data []byte)

func (f PushHandlerFunc) HandlePush(ctx context.Context, data []byte) { f(ctx, data) }

// Receiver accepts push requests addressed to the stored subscription.
type Receiver struct {
	manager *Manager
	handler PushHandler
	logger  logger.Logger
	now     func() time.Time
}

type ReceiverOption func(*Receiver)

func WithReceiverLogger(l logger.Logger) ReceiverOption {
	return func(r *Receiver) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithReceiverClock(now func() time.Time) ReceiverOption {
	return func(r *Receiver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewReceiver(manager *Manager, handler PushHandler, opts ...ReceiverOption) (*Receiver, error) {
	if manager == nil {
		return nil, errors.New("webpush: manager is required")
	}
	if handler == nil {
		return nil, errors.New("webpush: push handler is required")
	}
	r := &Receiver{manager: manager, handler: handler, logger: &logger.Nop{}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// ServePush handles POST /push/{id}.
func (r *Receiver) ServePush(w http.ResponseWriter, req *http.Request, id string) {
	ctx := req.Context()
	stored, err := r.manager.Load(ctx)
	if err != nil {
		r.logger.Error("load subscription failed", logger.Field{Key: "error", Value: err})
		http.Error(w, "subscription unavailable", http.StatusInternalServerError)
		return
	}
	if stored == nil || stored.ID != id {
		http.Error(w, "no such subscription", http.StatusNotFound)
		return
	}
	if stored.Record().Expired(r.now()) {
		http.Error(w, "subscription expired", http.StatusGone)
		return
	}

	origin, err := Origin(stored.Endpoint)
	if err != nil {
		http.Error(w, "subscription endpoint invalid", http.StatusInternalServerError)
		return
	}
	if err := VerifyAuthorization(req.Header.Get("Authorization"), origin, stored.ApplicationServerKey, r.now()); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, ErrForbidden) {
			status = http.StatusForbidden
		}
		r.logger.Warn("push rejected", logger.Field{Key: "status", Value: status}, logger.Field{Key: "error", Value: err})
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !strings.EqualFold(strings.TrimSpace(req.Header.Get("Content-Encoding")), ContentEncoding) {
		http.Error(w, "content encoding must be aes128gcm", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, MaxPayloadSize+1))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}
	if len(body) > MaxPayloadSize {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	priv, err := stored.privateKey()
	if err != nil {
		r.logger.Error("subscription private key invalid", logger.Field{Key: "error", Value: err})
		http.Error(w, "subscription unavailable", http.StatusInternalServerError)
		return
	}
	plain, err := Decrypt(priv, stored.Auth, body)
	if err != nil {
		r.logger.Warn("push decrypt failed", logger.Field{Key: "error", Value: err})
		http.Error(w, "decrypt failed", http.StatusBadRequest)
		return
	}

	r.handler.HandlePush(ctx, plain)
	w.WriteHeader(http.StatusCreated)
}
