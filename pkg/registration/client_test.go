package registration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-pushrelay/pkg/domain"
)

func samplePayload() domain.SubscriptionPayload {
	return domain.SubscriptionPayload{
		Endpoint: "http://127.0.0.1:8787/push/abc",
		Keys:     domain.PayloadKeyPair{P256dh: "BAEC", Auth: "Cgs"},
	}
}

func TestValidateURL(t *testing.T) {
	valid := []string{"http://example.com/register", "https://example.com", " https://a.b/c?d=1 "}
	for _, raw := range valid {
		if _, err := ValidateURL(raw); err != nil {
			t.Fatalf("ValidateURL(%q): %v", raw, err)
		}
	}
	invalid := []string{"", "not-a-url", "ftp://example.com", "https://", "mailto:a@b.c", "/relative"}
	for _, raw := range invalid {
		if _, err := ValidateURL(raw); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("ValidateURL(%q) = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestRegisterPostsPayloadAsJSON(t *testing.T) {
	var (
		gotMethod, gotType, gotHeader string
		gotBody                       domain.SubscriptionPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotHeader = r.Header.Get("X-Client")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(WithHeader("X-Client", "pushrelay"))
	if err := client.Register(context.Background(), srv.URL+"/register", samplePayload()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if gotMethod != http.MethodPost || gotType != "application/json" || gotHeader != "pushrelay" {
		t.Fatalf("unexpected request %s %s %s", gotMethod, gotType, gotHeader)
	}
	if gotBody != samplePayload() {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestRegisterNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New().Register(context.Background(), srv.URL, samplePayload())
	if !errors.Is(err, domain.ErrRegistrationRequestFailed) {
		t.Fatalf("expected registration failure, got %v", err)
	}
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %v", err)
	}
}

func TestRegisterTransportErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New().Register(context.Background(), url, samplePayload())
	if !errors.Is(err, domain.ErrRegistrationRequestFailed) {
		t.Fatalf("expected registration failure, got %v", err)
	}
}

func TestRegisterHonoursTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	err := New(WithTimeout(20*time.Millisecond)).Register(context.Background(), srv.URL, samplePayload())
	if !errors.Is(err, domain.ErrRegistrationRequestFailed) {
		t.Fatalf("expected timeout to fail registration, got %v", err)
	}
}

func TestRegisterRejectsInvalidURLWithoutRequest(t *testing.T) {
	err := New().Register(context.Background(), "not-a-url", samplePayload())
	if !errors.Is(err, ErrInvalidURL) || !errors.Is(err, domain.ErrRegistrationRequestFailed) {
		t.Fatalf("unexpected error %v", err)
	}
}
