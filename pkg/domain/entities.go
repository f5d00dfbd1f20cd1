package domain

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MessageTypePushNotification tags relay messages carrying a push body.
const MessageTypePushNotification = "push-notification"

// Well-known KV keys shared by the foreground and background contexts.
const (
	KeyEvents       = "events"
	KeyPermission   = "notification.permission"
	KeySubscription = "push.subscription"
	KeyRegistered   = "app.registered"
)

// PermissionState mirrors the notification permission of the profile.
type PermissionState string

const (
	PermissionUnknown PermissionState = "unknown"
	PermissionDenied  PermissionState = "denied"
	PermissionGranted PermissionState = "granted"
)

// ParsePermissionState normalises persisted values; anything unrecognised is unknown.
func ParsePermissionState(raw string) PermissionState {
	switch PermissionState(raw) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	default:
		return PermissionUnknown
	}
}

// AppState is the linear workflow of the foreground UI.
type AppState string

const (
	StatePermission AppState = "permission"
	StateScan       AppState = "scan"
	StateScanning   AppState = "scanning"
	StateEvents     AppState = "events"
)

// SubscriptionKeys holds the client key material advertised to servers.
type SubscriptionKeys struct {
	P256dh []byte `json:"p256dh"`
	Auth   []byte `json:"auth"`
}

// PushSubscriptionRecord is the credential/endpoint pair issued by the push service.
type PushSubscriptionRecord struct {
	Endpoint       string           `json:"endpoint"`
	ExpirationTime *time.Time       `json:"expiration_time,omitempty"`
	Keys           SubscriptionKeys `json:"keys"`
}

// Expired reports whether the record carries an expiration in the past.
func (r PushSubscriptionRecord) Expired(now time.Time) bool {
	return r.ExpirationTime != nil && !r.ExpirationTime.After(now)
}

// SubscriptionPayload is the JSON shape servers expect (PushSubscription.toJSON).
type SubscriptionPayload struct {
	Endpoint       string         `json:"endpoint"`
	ExpirationTime *int64         `json:"expirationTime"`
	Keys           PayloadKeyPair `json:"keys"`
}

// PayloadKeyPair carries base64url encoded keys.
type PayloadKeyPair struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Payload converts the record into its wire representation.
func (r PushSubscriptionRecord) Payload() SubscriptionPayload {
	payload := SubscriptionPayload{
		Endpoint: r.Endpoint,
		Keys: PayloadKeyPair{
			P256dh: base64.RawURLEncoding.EncodeToString(r.Keys.P256dh),
			Auth:   base64.RawURLEncoding.EncodeToString(r.Keys.Auth),
		},
	}
	if r.ExpirationTime != nil {
		ms := r.ExpirationTime.UnixMilli()
		payload.ExpirationTime = &ms
	}
	return payload
}

// EventItem is a single relayed push event shown in the foreground list.
type EventItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// RelayMessage is posted from the background relay to foreground contexts.
type RelayMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PushPayload is the decoded push message body.
type PushPayload struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// Notification is a user-visible system notification.
type Notification struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Body  string  `json:"body"`
	Icon  string  `json:"icon,omitempty"`
	Badge string  `json:"badge,omitempty"`
	Data  JSONMap `json:"data,omitempty"`
}

// RecordMeta captures identifiers and audit fields shared across entities.
type RecordMeta struct {
	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// EnsureID assigns a UUID when the struct is about to be persisted.
func (m *RecordMeta) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
}

// KVEntry persists one key of the durable key-value store.
type KVEntry struct {
	bun.BaseModel `bun:"table:pushrelay_kv_entries"`
	RecordMeta

	Key   string `bun:",unique,notnull" json:"key"`
	Value string `bun:",notnull" json:"value"`
}

// JSONMap carries arbitrary notification data.
type JSONMap map[string]any

// RegistrationMarker is persisted under KeyRegistered once an endpoint accepted
// the subscription.
type RegistrationMarker struct {
	URL string    `json:"url"`
	At  time.Time `json:"at"`
}
