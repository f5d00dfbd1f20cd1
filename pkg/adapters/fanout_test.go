package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-pushrelay/pkg/domain"
)

func TestFanoutShow(t *testing.T) {
	var received []domain.Notification
	fn := Func(func(ctx context.Context, n domain.Notification) error {
		received = append(received, n)
		return nil
	})
	f := NewFanout(fn, nil, fn)
	if err := f.Show(context.Background(), domain.Notification{ID: "n1", Title: "hello"}); err != nil {
		t.Fatalf("show: %v", err)
	}
	if len(received) != 2 {
		t.Fatalf("expected notification fanout, got %d", len(received))
	}
}

func TestFanoutReturnsFirstError(t *testing.T) {
	calls := 0
	errExpected := errors.New("boom")
	fn := Func(func(ctx context.Context, n domain.Notification) error {
		calls++
		if calls == 1 {
			return errExpected
		}
		return nil
	})
	f := NewFanout(fn, fn)
	err := f.Show(context.Background(), domain.Notification{})
	if !errors.Is(err, errExpected) {
		t.Fatalf("expected error %v, got %v", errExpected, err)
	}
	if calls != 2 {
		t.Fatalf("expected both sinks invoked, got %d", calls)
	}
}
