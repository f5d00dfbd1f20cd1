package adapters

import (
	"context"

	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
)

// Notifier displays user-visible system notifications.
type Notifier interface {
	Name() string
	Show(ctx context.Context, n domain.Notification) error
	Close(ctx context.Context, id string) error
}

// BaseAdapter provides shared helpers for simple adapters.
type BaseAdapter struct {
	logger logger.Logger
}

func NewBaseAdapter(l logger.Logger) BaseAdapter {
	if l == nil {
		l = &logger.Nop{}
	}
	return BaseAdapter{logger: l}
}

func (b BaseAdapter) LogSuccess(name string, n domain.Notification) {
	b.logger.Info("notification shown", logger.Field{Key: "adapter", Value: name}, logger.Field{Key: "id", Value: n.ID}, logger.Field{Key: "title", Value: n.Title})
}

func (b BaseAdapter) LogFailure(name string, n domain.Notification, err error) {
	b.logger.Error("notification failed", logger.Field{Key: "adapter", Value: name}, logger.Field{Key: "id", Value: n.ID}, logger.Field{Key: "error", Value: err})
}

// Logger exposes the adapter logger for structured diagnostics.
func (b BaseAdapter) Logger() logger.Logger {
	if b.logger == nil {
		return &logger.Nop{}
	}
	return b.logger
}
