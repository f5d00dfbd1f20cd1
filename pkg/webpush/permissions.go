package webpush

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/store"
	"github.com/goliatone/go-pushrelay/pkg/subscription"
)

// Prompter asks the user whether notifications may be shown.
type Prompter func(ctx context.Context) (bool, error)

// Permissions persists the notification permission in the KV store.
type Permissions struct {
	kv     store.KV
	prompt Prompter
}

var _ subscription.Notifications = (*Permissions)(nil)

// NewPermissions returns a permission store; a nil prompter denies requests.
func NewPermissions(kv store.KV, prompt Prompter) *Permissions {
	return &Permissions{kv: kv, prompt: prompt}
}

func (p *Permissions) Permission(ctx context.Context) (domain.PermissionState, error) {
	raw, err := p.kv.Get(ctx, domain.KeyPermission)
	if errors.Is(err, store.ErrNotFound) {
		return domain.PermissionUnknown, nil
	}
	if err != nil {
		return domain.PermissionUnknown, fmt.Errorf("webpush: read permission: %w", err)
	}
	return domain.ParsePermissionState(string(raw)), nil
}

// RequestPermission prompts and persists the answer.
func (p *Permissions) RequestPermission(ctx context.Context) (domain.PermissionState, error) {
	granted := false
	if p.prompt != nil {
		ok, err := p.prompt(ctx)
		if err != nil {
			return domain.PermissionUnknown, err
		}
		granted = ok
	}
	state := domain.PermissionDenied
	if granted {
		state = domain.PermissionGranted
	}
	if err := p.Set(ctx, state); err != nil {
		return domain.PermissionUnknown, err
	}
	return state, nil
}

// Set stores state directly; used by the CLI permission command.
func (p *Permissions) Set(ctx context.Context, state domain.PermissionState) error {
	if err := p.kv.Set(ctx, domain.KeyPermission, []byte(state)); err != nil {
		return fmt.Errorf("webpush: write permission: %w", err)
	}
	return nil
}
