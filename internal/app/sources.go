package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/domain"
)

// ProfileSource reads the external collaborators' current state: listing
// moderation and seller subscription tier. Always consulted live at
// decision time, never cached on reservations.
type ProfileSource interface {
	GetListing(ctx context.Context, id uuid.UUID) (domain.Listing, error)
	GetSeller(ctx context.Context, id uuid.UUID) (domain.Seller, error)
}

// Notifier is the fire-and-forget message sink. Implementations must
// swallow failures; callers never branch on notification outcomes.
type Notifier interface {
	User(ctx context.Context, userID uuid.UUID, kind string, data map[string]interface{})
	Admins(ctx context.Context, kind string, data map[string]interface{})
}
