package domain

import (
	"time"

	"github.com/google/uuid"
)

type ExtensionStatus string

const (
	ExtensionPendingPayment ExtensionStatus = "pending_payment"
	ExtensionPendingAdmin   ExtensionStatus = "pending_admin"
	ExtensionApproved       ExtensionStatus = "approved"
	ExtensionRejected       ExtensionStatus = "rejected"
)

// ExtensionRequest buys additional days past the period end for a single
// confirmed reservation. At most one non-terminal request per reservation.
type ExtensionRequest struct {
	ID            uuid.UUID
	ReservationID uuid.UUID
	BuyerID       uuid.UUID
	Days          int
	Price         float64
	Currency      string
	Status        ExtensionStatus
	PaymentID     *uuid.UUID
	InvoiceID     *uuid.UUID
	CreatedAt     time.Time
}

func NewExtensionRequest(reservationID, buyerID uuid.UUID, days int, dayPrice float64, currency string, now time.Time) ExtensionRequest {
	return ExtensionRequest{
		ID:            uuid.New(),
		ReservationID: reservationID,
		BuyerID:       buyerID,
		Days:          days,
		Price:         float64(days) * dayPrice,
		Currency:      currency,
		Status:        ExtensionPendingPayment,
		CreatedAt:     now,
	}
}

func (s ExtensionStatus) Terminal() bool {
	return s == ExtensionApproved || s == ExtensionRejected
}
