package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/velumart/elite-slot/internal/domain"
)

func (s *Store) ActivePeriod(ctx context.Context) (*domain.Period, error) {
	var p domain.Period
	err := s.queryRow(ctx, `
		SELECT id, starts_at, ends_at, status FROM periods WHERE status = 'active'
	`).Scan(&p.ID, &p.StartsAt, &p.EndsAt, &p.Status)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "active period")
	}
	return &p, nil
}

func (s *Store) GetPeriod(ctx context.Context, id uuid.UUID) (*domain.Period, error) {
	var p domain.Period
	err := s.queryRow(ctx, `
		SELECT id, starts_at, ends_at, status FROM periods WHERE id = $1
	`, id).Scan(&p.ID, &p.StartsAt, &p.EndsAt, &p.Status)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get period")
	}
	return &p, nil
}

// LapsedActivePeriodForUpdate locks the active period iff its end has
// passed. Concurrent rotations serialize here; the loser sees no row.
func (s *Store) LapsedActivePeriodForUpdate(ctx context.Context, now time.Time) (*domain.Period, error) {
	var p domain.Period
	err := s.queryRow(ctx, `
		SELECT id, starts_at, ends_at, status FROM periods
		WHERE status = 'active' AND ends_at <= $1
		FOR UPDATE
	`, now).Scan(&p.ID, &p.StartsAt, &p.EndsAt, &p.Status)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lapsed active period")
	}
	return &p, nil
}

func (s *Store) CreatePeriod(ctx context.Context, p domain.Period) error {
	_, err := s.exec(ctx, `
		INSERT INTO periods (id, starts_at, ends_at, status) VALUES ($1, $2, $3, $4)
	`, p.ID, p.StartsAt, p.EndsAt, p.Status)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return errors.Wrap(err, "create period")
}

func (s *Store) EndPeriod(ctx context.Context, id uuid.UUID) error {
	tag, err := s.exec(ctx, `
		UPDATE periods SET status = 'ended' WHERE id = $1 AND status = 'active'
	`, id)
	if err != nil {
		return errors.Wrap(err, "end period")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}
