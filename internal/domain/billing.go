package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payment is the record handed back by the billing collaborator when a
// charge settles.
type Payment struct {
	ID        uuid.UUID
	BuyerID   uuid.UUID
	Amount    float64
	Currency  string
	Method    string
	Reference string
	CreatedAt time.Time
}

// Invoice carries a sequential, human-readable number. Numbers are
// allocated under a year-scoped advisory lock so concurrent confirmations
// can neither collide nor skip.
type Invoice struct {
	ID        uuid.UUID
	Number    string
	Year      int
	Seq       int
	PaymentID uuid.UUID
	Amount    float64
	Currency  string
	CreatedAt time.Time
}

func InvoiceNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq)
}
