package domain

import (
	"time"

	"github.com/google/uuid"
)

type PeriodStatus string

const (
	PeriodActive PeriodStatus = "active"
	PeriodEnded  PeriodStatus = "ended"
)

// Period is the rotating sale window. At most one period is active at a
// time; a partial unique index in the database backs that invariant.
type Period struct {
	ID       uuid.UUID
	StartsAt time.Time
	EndsAt   time.Time
	Status   PeriodStatus
}

func NewPeriod(start time.Time, duration time.Duration) Period {
	return Period{
		ID:       uuid.New(),
		StartsAt: start,
		EndsAt:   start.Add(duration),
		Status:   PeriodActive,
	}
}

func (p Period) Lapsed(now time.Time) bool {
	return !now.Before(p.EndsAt)
}
