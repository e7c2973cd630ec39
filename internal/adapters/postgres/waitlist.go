package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/domain"
)

func (s *Store) InsertWaitlistEntry(ctx context.Context, e domain.WaitlistEntry) error {
	_, err := s.exec(ctx, `
		INSERT INTO waitlist_entries (id, period_id, buyer_id, listing_id, tier_preference, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.PeriodID, e.BuyerID, e.ListingID, e.TierPreference, e.Status, e.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return errors.Wrap(err, "insert waitlist entry")
}

func (s *Store) WaitingEntries(ctx context.Context, periodID uuid.UUID) ([]domain.WaitlistEntry, error) {
	rows, err := s.query(ctx, `
		SELECT id, period_id, buyer_id, listing_id, tier_preference, status, created_at
		FROM waitlist_entries
		WHERE period_id = $1 AND status = 'waiting'
		ORDER BY created_at
	`, periodID)
	if err != nil {
		return nil, errors.Wrap(err, "waiting entries")
	}
	defer rows.Close()

	var out []domain.WaitlistEntry
	for rows.Next() {
		var e domain.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.PeriodID, &e.BuyerID, &e.ListingID, &e.TierPreference, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkNotified is guarded on status so a concurrent rotation cannot notify
// the same entry twice.
func (s *Store) MarkNotified(ctx context.Context, periodID uuid.UUID) (int64, error) {
	tag, err := s.exec(ctx, `
		UPDATE waitlist_entries SET status = 'notified'
		WHERE period_id = $1 AND status = 'waiting'
	`, periodID)
	if err != nil {
		return 0, errors.Wrap(err, "mark notified")
	}
	return tag.RowsAffected(), nil
}
