package desktop

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-pushrelay/pkg/domain"
)

func TestDesktopAdapterBuildsNotifySendCommand(t *testing.T) {
	var got []string
	adapter := New(nil, WithOS("linux"), WithRunner(func(ctx context.Context, name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}))

	err := adapter.Show(context.Background(), domain.Notification{Title: "New Event", Body: "hello", Icon: "/icon-192.png"})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	want := "notify-send --app-name pushrelay --icon /icon-192.png New Event hello"
	if strings.Join(got, " ") != want {
		t.Fatalf("unexpected command %q", strings.Join(got, " "))
	}
}

func TestDesktopAdapterRejectsUnknownOS(t *testing.T) {
	adapter := New(nil, WithOS("plan9"), WithRunner(func(ctx context.Context, name string, args ...string) error {
		t.Fatalf("runner should not be invoked")
		return nil
	}))
	if err := adapter.Show(context.Background(), domain.Notification{}); err == nil {
		t.Fatalf("expected unsupported OS error")
	}
}
