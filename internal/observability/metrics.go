package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eliteslot_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	HoldsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliteslot_holds_created_total",
			Help: "Total holds placed",
		},
	)

	HoldConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliteslot_hold_conflicts_total",
			Help: "Hold attempts rejected because the slot was occupied",
		},
	)

	ReservationsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eliteslot_reservations_confirmed_total",
			Help: "Confirmations by resulting status",
		},
		[]string{"status"},
	)

	InvoicesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliteslot_invoices_issued_total",
			Help: "Sequential invoice numbers allocated",
		},
	)

	PeriodRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliteslot_period_rotations_total",
			Help: "Completed period rotations",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eliteslot_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliteslot_notify_failures_total",
			Help: "Notification publishes dropped after error",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliteslot_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
