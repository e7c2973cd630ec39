package domain

import (
	"time"

	"github.com/google/uuid"
)

type PriceSource string

const (
	PriceSourceBase      PriceSource = "base"
	PriceSourceOverride  PriceSource = "override"
	PriceSourceConverted PriceSource = "converted"
)

// PriceQuote is a resolved price for a slot in a buyer country. Converted
// quotes carry NeedsReview until an administrator persists them as
// explicit overrides; payment refuses to settle while the flag is set.
type PriceQuote struct {
	Amount      float64
	Currency    string
	NeedsReview bool
	Source      PriceSource
}

// PriceOverride is an explicit admin-approved price for (slot, country).
type PriceOverride struct {
	SlotID      uuid.UUID
	CountryCode string
	Price       float64
	Currency    string
	ApprovedAt  time.Time
}

// ExchangeRate converts the reference-currency base price for one buyer
// country. Maintained by administrators.
type ExchangeRate struct {
	CountryCode string
	Currency    string
	Rate        float64
	UpdatedAt   time.Time
}
