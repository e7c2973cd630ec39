package domain

import "github.com/google/uuid"

type ModerationStatus string

const (
	ModerationPendingStatus ModerationStatus = "pending"
	ModerationApproved      ModerationStatus = "approved"
	ModerationRejected      ModerationStatus = "rejected"
)

// Listing is the read-only view of the moderation collaborator's record.
// Moderation status is always re-read at decision time, never cached on
// the reservation.
type Listing struct {
	ID         uuid.UUID
	SellerID   uuid.UUID
	Title      string
	Moderation ModerationStatus
}

type SellerTier string

const (
	SellerTierBasic    SellerTier = "basic"
	SellerTierBusiness SellerTier = "business"
	SellerTierPremium  SellerTier = "premium"
)

// Seller is the profile collaborator's view of a buyer of slot inventory.
type Seller struct {
	ID   uuid.UUID
	Tier SellerTier
}

// EligibleForEliteSlots reports whether the subscription tier may buy
// featured positions.
func (s Seller) EligibleForEliteSlots() bool {
	return s.Tier == SellerTierBusiness || s.Tier == SellerTierPremium
}
