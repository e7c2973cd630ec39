package domain

import (
	"time"

	"github.com/google/uuid"
)

type SlotTier string

const (
	TierTop    SlotTier = "top"
	TierMiddle SlotTier = "middle"
	TierBottom SlotTier = "bottom"
)

func ParseSlotTier(s string) (SlotTier, error) {
	switch SlotTier(s) {
	case TierTop, TierMiddle, TierBottom:
		return SlotTier(s), nil
	}
	return "", ErrValidation
}

// Slot is a sellable display position. Slots are seeded once and never
// deleted, only deactivated; base price is the only mutable attribute.
type Slot struct {
	ID           uuid.UUID
	Row          int
	Col          int
	Tier         SlotTier
	BasePrice    float64
	DisplayOrder int
	Active       bool
	CreatedAt    time.Time
}
