package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationHeld            ReservationStatus = "held"
	ReservationPendingApproval ReservationStatus = "pending_approval"
	ReservationConfirmed       ReservationStatus = "confirmed"
	ReservationCancelled       ReservationStatus = "cancelled"
	ReservationExpired         ReservationStatus = "expired"
)

// Reservation is the per (slot, period) occupancy record. At most one
// reservation per (slot, period) may be in a non-terminal status; the
// database enforces this with a partial unique index behind the
// FOR UPDATE re-check inside every write transaction.
type Reservation struct {
	ID               uuid.UUID
	SlotID           uuid.UUID
	PeriodID         uuid.UUID
	ListingID        uuid.UUID
	BuyerID          uuid.UUID
	Status           ReservationStatus
	Price            float64
	Currency         string
	CountryCode      string
	PriceNeedsReview bool
	HoldExpiresAt    *time.Time
	ConfirmedAt      *time.Time
	CancelReason     string
	PaymentID        *uuid.UUID
	InvoiceID        *uuid.UUID
	// ReservedUntil overrides the period end when an approved extension
	// lengthens the reservation's effective end date.
	ReservedUntil *time.Time
	CreatedAt     time.Time
}

// NewHold creates a reservation in the held state with a fixed lifetime.
// Price is snapshotted here; later catalog price changes never apply
// retroactively.
func NewHold(slotID, periodID, listingID, buyerID uuid.UUID, quote PriceQuote, country string, now time.Time, ttl time.Duration) Reservation {
	exp := now.Add(ttl)
	return Reservation{
		ID:               uuid.New(),
		SlotID:           slotID,
		PeriodID:         periodID,
		ListingID:        listingID,
		BuyerID:          buyerID,
		Status:           ReservationHeld,
		Price:            quote.Amount,
		Currency:         quote.Currency,
		CountryCode:      country,
		PriceNeedsReview: quote.NeedsReview,
		HoldExpiresAt:    &exp,
		CreatedAt:        now,
	}
}

func (s ReservationStatus) Terminal() bool {
	return s == ReservationCancelled || s == ReservationExpired
}

// HoldLapsed reports whether a held reservation's lifetime has passed.
// Expiry is lazy: the instant now passes the expiry timestamp the hold no
// longer occupies its slot, whether or not a sweep has run.
func (r Reservation) HoldLapsed(now time.Time) bool {
	return r.Status == ReservationHeld && r.HoldExpiresAt != nil && now.After(*r.HoldExpiresAt)
}

// Occupies reports whether the reservation blocks its (slot, period) pair
// at the given instant.
func (r Reservation) Occupies(now time.Time) bool {
	switch r.Status {
	case ReservationConfirmed, ReservationPendingApproval:
		return true
	case ReservationHeld:
		return !r.HoldLapsed(now)
	}
	return false
}

// EffectiveEnd is the instant the reservation's visibility ends: the
// period end unless an approved extension moved it later.
func (r Reservation) EffectiveEnd(periodEnd time.Time) time.Time {
	if r.ReservedUntil != nil && r.ReservedUntil.After(periodEnd) {
		return *r.ReservedUntil
	}
	return periodEnd
}
