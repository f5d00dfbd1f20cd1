package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to the UI.
type ErrorKind string

const (
	KindUnsupportedCapability     ErrorKind = "unsupported_capability"
	KindPermissionNotGranted      ErrorKind = "permission_not_granted"
	KindMissingConfiguration      ErrorKind = "missing_configuration"
	KindInvalidKeyEncoding        ErrorKind = "invalid_key_encoding"
	KindSubscriptionFailed        ErrorKind = "subscription_failed"
	KindRegistrationRequestFailed ErrorKind = "registration_request_failed"
	KindMalformedPushPayload      ErrorKind = "malformed_push_payload"
)

// Capability names reported by UnsupportedCapability errors.
const (
	CapabilityNotifications = "notifications"
	CapabilityServiceWorker = "service-worker"
	CapabilityPushManager   = "push-manager"
)

// Error carries a kind plus enough detail to render a user message.
type Error struct {
	Kind       ErrorKind
	Capability string
	Detail     string
	StatusCode int
	Err        error
}

// Sentinels usable with errors.Is; they match any error of the same kind.
var (
	ErrUnsupportedCapability     = &Error{Kind: KindUnsupportedCapability}
	ErrPermissionNotGranted      = &Error{Kind: KindPermissionNotGranted}
	ErrMissingConfiguration      = &Error{Kind: KindMissingConfiguration}
	ErrInvalidKeyEncoding        = &Error{Kind: KindInvalidKeyEncoding}
	ErrSubscriptionFailed        = &Error{Kind: KindSubscriptionFailed}
	ErrRegistrationRequestFailed = &Error{Kind: KindRegistrationRequestFailed}
	ErrMalformedPushPayload      = &Error{Kind: KindMalformedPushPayload}
)

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	switch e.Kind {
	case KindUnsupportedCapability:
		msg = fmt.Sprintf("%s is not supported", e.Capability)
	case KindPermissionNotGranted:
		msg = "notification permission has not been granted"
	case KindMissingConfiguration:
		msg = fmt.Sprintf("missing configuration %s", e.Detail)
	case KindInvalidKeyEncoding:
		msg = "invalid base64url key encoding"
	case KindSubscriptionFailed:
		msg = "push subscription failed"
	case KindRegistrationRequestFailed:
		msg = "registration request failed"
		if e.StatusCode != 0 {
			msg = fmt.Sprintf("%s: unexpected status %d", msg, e.StatusCode)
		}
	case KindMalformedPushPayload:
		msg = "malformed push payload"
	}
	if e.Kind != KindMissingConfiguration && e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind, and on capability when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Capability == "" || t.Capability == e.Capability
}

// KindOf returns the kind of the first domain error in the chain.
func KindOf(err error) (ErrorKind, bool) {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind, true
	}
	return "", false
}

func UnsupportedCapability(capability string) error {
	return &Error{Kind: KindUnsupportedCapability, Capability: capability}
}

func PermissionNotGranted(state PermissionState) error {
	return &Error{Kind: KindPermissionNotGranted, Detail: fmt.Sprintf("state=%s", state)}
}

// PermissionCheckFailed reports a permission state that could not be read.
func PermissionCheckFailed(err error) error {
	return &Error{Kind: KindPermissionNotGranted, Detail: fmt.Sprintf("state=%s", PermissionUnknown), Err: err}
}

func MissingConfiguration(key string) error {
	return &Error{Kind: KindMissingConfiguration, Detail: key}
}

func InvalidKeyEncoding(err error) error {
	return &Error{Kind: KindInvalidKeyEncoding, Err: err}
}

func SubscriptionFailed(err error) error {
	return &Error{Kind: KindSubscriptionFailed, Err: err}
}

func RegistrationRequestFailed(status int, err error) error {
	return &Error{Kind: KindRegistrationRequestFailed, StatusCode: status, Err: err}
}

func MalformedPushPayload(err error) error {
	return &Error{Kind: KindMalformedPushPayload, Err: err}
}
