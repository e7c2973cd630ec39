package app

import (
	"context"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/domain"
)

type PricingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListActiveSlots(ctx context.Context) ([]domain.Slot, error)
	GetSlot(ctx context.Context, id uuid.UUID) (*domain.Slot, error)
	GetOverride(ctx context.Context, slotID uuid.UUID, country string) (*domain.PriceOverride, error)
	UpsertOverride(ctx context.Context, o domain.PriceOverride) error
	GetExchangeRate(ctx context.Context, country string) (*domain.ExchangeRate, error)
	UpsertExchangeRate(ctx context.Context, r domain.ExchangeRate) error
}

// PricingService resolves slot prices per buyer country. Explicit overrides
// are returned verbatim; automatic conversions are flagged for manual
// review and block payment until an administrator approves them.
type PricingService struct {
	repo        PricingRepository
	clock       clock.Clock
	refCountry  string
	refCurrency string
}

func NewPricingService(repo PricingRepository, clk clock.Clock, refCountry, refCurrency string) *PricingService {
	return &PricingService{
		repo:        repo,
		clock:       clk,
		refCountry:  strings.ToUpper(refCountry),
		refCurrency: refCurrency,
	}
}

func (s *PricingService) ReferenceCountry() string {
	return s.refCountry
}

func (s *PricingService) Resolve(ctx context.Context, slotID uuid.UUID, country string) (domain.PriceQuote, error) {
	country = strings.ToUpper(country)
	if country == "" {
		country = s.refCountry
	}

	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	if country == s.refCountry {
		return domain.PriceQuote{
			Amount:   slot.BasePrice,
			Currency: s.refCurrency,
			Source:   domain.PriceSourceBase,
		}, nil
	}

	override, err := s.repo.GetOverride(ctx, slotID, country)
	if err == nil {
		return domain.PriceQuote{
			Amount:   override.Price,
			Currency: override.Currency,
			Source:   domain.PriceSourceOverride,
		}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.PriceQuote{}, err
	}

	rate, err := s.repo.GetExchangeRate(ctx, country)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return domain.PriceQuote{
		Amount:      roundMoney(slot.BasePrice * rate.Rate),
		Currency:    rate.Currency,
		NeedsReview: true,
		Source:      domain.PriceSourceConverted,
	}, nil
}

type SlotPrice struct {
	Slot  domain.Slot
	Quote domain.PriceQuote
}

// CountrySheet resolves every active slot for a country, flagging the rows
// that still need administrative review.
func (s *PricingService) CountrySheet(ctx context.Context, country string) ([]SlotPrice, error) {
	slots, err := s.repo.ListActiveSlots(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SlotPrice, 0, len(slots))
	for _, slot := range slots {
		quote, err := s.Resolve(ctx, slot.ID, country)
		if err != nil {
			return nil, err
		}
		out = append(out, SlotPrice{Slot: slot, Quote: quote})
	}
	return out, nil
}

// ApproveCountry persists the auto-converted price of every active slot as
// an explicit override, clearing the review flag for the whole country.
func (s *PricingService) ApproveCountry(ctx context.Context, country string) (int, error) {
	country = strings.ToUpper(country)
	if country == "" || country == s.refCountry {
		return 0, domain.ErrValidation
	}

	now := s.clock.Now()
	approved := 0
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		slots, err := s.repo.ListActiveSlots(txCtx)
		if err != nil {
			return err
		}
		for _, slot := range slots {
			quote, err := s.Resolve(txCtx, slot.ID, country)
			if err != nil {
				return err
			}
			if !quote.NeedsReview {
				continue
			}
			err = s.repo.UpsertOverride(txCtx, domain.PriceOverride{
				SlotID:      slot.ID,
				CountryCode: country,
				Price:       quote.Amount,
				Currency:    quote.Currency,
				ApprovedAt:  now,
			})
			if err != nil {
				return err
			}
			approved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return approved, nil
}

// SetExchangeRate stores the conversion rate used for countries without
// explicit overrides. The reference country never converts, so a rate for
// it is meaningless.
func (s *PricingService) SetExchangeRate(ctx context.Context, country, currency string, rate float64) (domain.ExchangeRate, error) {
	country = strings.ToUpper(country)
	if country == "" || country == s.refCountry || currency == "" || rate <= 0 {
		return domain.ExchangeRate{}, domain.ErrValidation
	}

	r := domain.ExchangeRate{
		CountryCode: country,
		Currency:    currency,
		Rate:        rate,
		UpdatedAt:   s.clock.Now(),
	}
	if err := s.repo.UpsertExchangeRate(ctx, r); err != nil {
		return domain.ExchangeRate{}, err
	}
	return r, nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
