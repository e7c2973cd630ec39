package domain

import (
	"time"

	"github.com/google/uuid"
)

type WaitlistStatus string

const (
	WaitlistWaiting  WaitlistStatus = "waiting"
	WaitlistNotified WaitlistStatus = "notified"
)

// WaitlistEntry records buyer interest when no slot is available. Entries
// are notified in bulk when the period rotates.
type WaitlistEntry struct {
	ID             uuid.UUID
	PeriodID       uuid.UUID
	BuyerID        uuid.UUID
	ListingID      uuid.UUID
	TierPreference SlotTier
	Status         WaitlistStatus
	CreatedAt      time.Time
}

func NewWaitlistEntry(periodID, buyerID, listingID uuid.UUID, tier SlotTier, now time.Time) WaitlistEntry {
	return WaitlistEntry{
		ID:             uuid.New(),
		PeriodID:       periodID,
		BuyerID:        buyerID,
		ListingID:      listingID,
		TierPreference: tier,
		Status:         WaitlistWaiting,
		CreatedAt:      now,
	}
}
