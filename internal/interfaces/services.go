package interfaces

import (
	"context"

	"github.com/bobmcallan/tradeonly/internal/models"
)

// AuthBackend is the remote session authority
type AuthBackend interface {
	// GetSession returns the current session, or nil when signed out.
	// Corrupt or expired sessions return an error.
	GetSession(ctx context.Context) (*models.Session, error)

	// SignOut ends the remote session. Local credentials are dropped even on error.
	SignOut(ctx context.Context) error
}

// AuthEventSource delivers auth state changes
type AuthEventSource interface {
	// Subscribe registers fn and returns a func that removes it.
	Subscribe(ctx context.Context, fn func(models.AuthEvent)) (func(), error)
}

// AuthEventPublisher emits auth state changes
type AuthEventPublisher interface {
	Publish(ctx context.Context, event models.AuthEvent) error
}
