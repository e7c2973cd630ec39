package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/velumart/elite-slot/internal/domain"
)

func (s *Store) GetOverride(ctx context.Context, slotID uuid.UUID, country string) (*domain.PriceOverride, error) {
	var o domain.PriceOverride
	err := s.queryRow(ctx, `
		SELECT slot_id, country_code, price, currency, approved_at
		FROM price_overrides WHERE slot_id = $1 AND country_code = $2
	`, slotID, country).Scan(&o.SlotID, &o.CountryCode, &o.Price, &o.Currency, &o.ApprovedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get override")
	}
	return &o, nil
}

func (s *Store) UpsertOverride(ctx context.Context, o domain.PriceOverride) error {
	_, err := s.exec(ctx, `
		INSERT INTO price_overrides (slot_id, country_code, price, currency, approved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slot_id, country_code)
		DO UPDATE SET price = $3, currency = $4, approved_at = $5
	`, o.SlotID, o.CountryCode, o.Price, o.Currency, o.ApprovedAt)
	return errors.Wrap(err, "upsert override")
}

func (s *Store) GetExchangeRate(ctx context.Context, country string) (*domain.ExchangeRate, error) {
	var r domain.ExchangeRate
	err := s.queryRow(ctx, `
		SELECT country_code, currency, rate, updated_at
		FROM exchange_rates WHERE country_code = $1
	`, country).Scan(&r.CountryCode, &r.Currency, &r.Rate, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get exchange rate")
	}
	return &r, nil
}

func (s *Store) UpsertExchangeRate(ctx context.Context, r domain.ExchangeRate) error {
	_, err := s.exec(ctx, `
		INSERT INTO exchange_rates (country_code, currency, rate, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (country_code) DO UPDATE SET currency = $2, rate = $3, updated_at = $4
	`, r.CountryCode, r.Currency, r.Rate, r.UpdatedAt)
	return errors.Wrap(err, "upsert exchange rate")
}
