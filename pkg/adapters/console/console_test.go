package console

import (
	"bytes"
	"context"
	"testing"

	"github.com/goliatone/go-pushrelay/pkg/domain"
)

func TestConsoleAdapterPrintsNotification(t *testing.T) {
	var buf bytes.Buffer
	adapter := New(nil, WithWriter(&buf))

	err := adapter.Show(context.Background(), domain.Notification{ID: "n1", Title: "New Event", Body: "deploy finished"})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if got := buf.String(); got != "[notification][n1] New Event: deploy finished\n" {
		t.Fatalf("unexpected output %q", got)
	}
	if err := adapter.Close(context.Background(), "n1"); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestConsoleAdapterName(t *testing.T) {
	if got := New(nil, WithName("stdout")).Name(); got != "stdout" {
		t.Fatalf("unexpected name %q", got)
	}
}
