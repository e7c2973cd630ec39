package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/domain"
	"github.com/velumart/elite-slot/internal/observability"
	"golang.org/x/sync/errgroup"
)

type PeriodRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ActivePeriod(ctx context.Context) (*domain.Period, error)
	CreatePeriod(ctx context.Context, p domain.Period) error
	LapsedActivePeriodForUpdate(ctx context.Context, now time.Time) (*domain.Period, error)
	EndPeriod(ctx context.Context, id uuid.UUID) error
	ExpireConfirmed(ctx context.Context, periodID uuid.UUID, periodEnd, now time.Time) (int64, error)
	ExpireLapsedExtended(ctx context.Context, now time.Time) (int64, error)
	SweepExpiredHolds(ctx context.Context, periodID uuid.UUID, now time.Time) ([]uuid.UUID, error)
	InsertWaitlistEntry(ctx context.Context, e domain.WaitlistEntry) error
	WaitingEntries(ctx context.Context, periodID uuid.UUID) ([]domain.WaitlistEntry, error)
	MarkNotified(ctx context.Context, periodID uuid.UUID) (int64, error)
}

type PeriodService struct {
	repo     PeriodRepository
	notifier Notifier
	clock    clock.Clock
	duration time.Duration
}

func NewPeriodService(repo PeriodRepository, notifier Notifier, clk clock.Clock, duration time.Duration) *PeriodService {
	return &PeriodService{repo: repo, notifier: notifier, clock: clk, duration: duration}
}

// Current returns the active period, creating one when none exists. A
// concurrent creator losing the unique-index race falls back to reading
// the winner's period.
func (s *PeriodService) Current(ctx context.Context) (domain.Period, error) {
	p, err := s.repo.ActivePeriod(ctx)
	if err == nil {
		return *p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Period{}, err
	}

	fresh := domain.NewPeriod(s.clock.Now(), s.duration)
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.CreatePeriod(txCtx, fresh)
	})
	if errors.Is(err, domain.ErrConflict) {
		p, err = s.repo.ActivePeriod(ctx)
		if err != nil {
			return domain.Period{}, err
		}
		return *p, nil
	}
	if err != nil {
		return domain.Period{}, err
	}
	return fresh, nil
}

type RotationResult struct {
	Rotated   bool
	OldPeriod *domain.Period
	NewPeriod *domain.Period
	Expired   int64
	Notified  int
}

// Rotate ends a lapsed period, expires its reservations, opens the next
// window and notifies the waitlist. Safe to call repeatedly and
// concurrently: the lapsed-period row lock serializes racers and the
// status guards make the loser a no-op.
func (s *PeriodService) Rotate(ctx context.Context) (RotationResult, error) {
	now := s.clock.Now()
	var (
		result  RotationResult
		entries []domain.WaitlistEntry
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		old, err := s.repo.LapsedActivePeriodForUpdate(txCtx, now)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := s.repo.EndPeriod(txCtx, old.ID); err != nil {
			return err
		}
		expired, err := s.repo.ExpireConfirmed(txCtx, old.ID, old.EndsAt, now)
		if err != nil {
			return err
		}
		if _, err := s.repo.SweepExpiredHolds(txCtx, old.ID, now); err != nil {
			return err
		}

		next := domain.NewPeriod(now, s.duration)
		if err := s.repo.CreatePeriod(txCtx, next); err != nil {
			return err
		}

		entries, err = s.repo.WaitingEntries(txCtx, old.ID)
		if err != nil {
			return err
		}
		if _, err := s.repo.MarkNotified(txCtx, old.ID); err != nil {
			return err
		}

		result = RotationResult{
			Rotated:   true,
			OldPeriod: old,
			NewPeriod: &next,
			Expired:   expired,
			Notified:  len(entries),
		}
		return nil
	})
	if err != nil {
		return RotationResult{}, err
	}
	if !result.Rotated {
		return result, nil
	}

	observability.PeriodRotations.Inc()

	// Waitlist fan-out happens after commit; a failed publish never undoes
	// the rotation.
	if s.notifier != nil && len(entries) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(8)
		for _, e := range entries {
			e := e
			g.Go(func() error {
				s.notifier.User(gctx, e.BuyerID, "slots_available", map[string]interface{}{
					"period_id":       result.NewPeriod.ID.String(),
					"tier_preference": string(e.TierPreference),
				})
				return nil
			})
		}
		_ = g.Wait()
	}
	return result, nil
}

// Sweep expires lapsed holds in the active period and closes out
// extension-lengthened reservations whose extended end has passed. The
// hold part is promptness only; every read and write path already treats
// a lapsed hold as gone. The extension part is authoritative: rotation
// spares those rows, so nothing else ends them.
func (s *PeriodService) Sweep(ctx context.Context) ([]uuid.UUID, error) {
	if _, err := s.repo.ExpireLapsedExtended(ctx, s.clock.Now()); err != nil {
		return nil, err
	}

	p, err := s.repo.ActivePeriod(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var swept []uuid.UUID
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		swept, err = s.repo.SweepExpiredHolds(txCtx, p.ID, s.clock.Now())
		return err
	})
	return swept, err
}

type JoinWaitlistInput struct {
	BuyerID        uuid.UUID
	ListingID      uuid.UUID
	TierPreference domain.SlotTier
}

func (s *PeriodService) JoinWaitlist(ctx context.Context, in JoinWaitlistInput) (domain.WaitlistEntry, error) {
	if in.BuyerID == uuid.Nil || in.ListingID == uuid.Nil {
		return domain.WaitlistEntry{}, domain.ErrValidation
	}
	if in.TierPreference != "" {
		if _, err := domain.ParseSlotTier(string(in.TierPreference)); err != nil {
			return domain.WaitlistEntry{}, err
		}
	}

	period, err := s.Current(ctx)
	if err != nil {
		return domain.WaitlistEntry{}, err
	}

	entry := domain.NewWaitlistEntry(period.ID, in.BuyerID, in.ListingID, in.TierPreference, s.clock.Now())
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.InsertWaitlistEntry(txCtx, entry)
	})
	if errors.Is(err, domain.ErrConflict) {
		return domain.WaitlistEntry{}, errors.WithDetail(domain.ErrConflict, "you are already on the waitlist for this period")
	}
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	return entry, nil
}
