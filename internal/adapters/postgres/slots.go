package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/velumart/elite-slot/internal/domain"
)

func (s *Store) ListActiveSlots(ctx context.Context) ([]domain.Slot, error) {
	rows, err := s.query(ctx, `
		SELECT id, row_no, col_no, tier, base_price, display_order, active, created_at
		FROM slots WHERE active ORDER BY display_order
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list active slots")
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var sl domain.Slot
		if err := rows.Scan(&sl.ID, &sl.Row, &sl.Col, &sl.Tier, &sl.BasePrice, &sl.DisplayOrder, &sl.Active, &sl.CreatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

func (s *Store) GetSlot(ctx context.Context, id uuid.UUID) (*domain.Slot, error) {
	var sl domain.Slot
	err := s.queryRow(ctx, `
		SELECT id, row_no, col_no, tier, base_price, display_order, active, created_at
		FROM slots WHERE id = $1
	`, id).Scan(&sl.ID, &sl.Row, &sl.Col, &sl.Tier, &sl.BasePrice, &sl.DisplayOrder, &sl.Active, &sl.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get slot")
	}
	return &sl, nil
}

func (s *Store) InsertSlot(ctx context.Context, sl domain.Slot) error {
	_, err := s.exec(ctx, `
		INSERT INTO slots (id, row_no, col_no, tier, base_price, display_order, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sl.ID, sl.Row, sl.Col, sl.Tier, sl.BasePrice, sl.DisplayOrder, sl.Active, sl.CreatedAt)
	return errors.Wrap(err, "insert slot")
}

// UpdateSlotPrice changes the base price going forward; existing
// reservations keep the price snapshotted at hold time.
func (s *Store) UpdateSlotPrice(ctx context.Context, id uuid.UUID, price float64) error {
	tag, err := s.exec(ctx, `UPDATE slots SET base_price = $2 WHERE id = $1`, id, price)
	if err != nil {
		return errors.Wrap(err, "update slot price")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateTierPrice(ctx context.Context, tier domain.SlotTier, price float64) (int64, error) {
	tag, err := s.exec(ctx, `UPDATE slots SET base_price = $2 WHERE tier = $1 AND active`, tier, price)
	if err != nil {
		return 0, errors.Wrap(err, "update tier price")
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeactivateSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := s.exec(ctx, `UPDATE slots SET active = FALSE WHERE id = $1 AND active`, id)
	if err != nil {
		return errors.Wrap(err, "deactivate slot")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
