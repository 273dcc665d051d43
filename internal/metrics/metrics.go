package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters. Registered on the default registry and served by the
// promhttp handler in cmd/api.
var (
	Bookings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recruitment_slot_bookings_total",
		Help: "Successful slot bookings.",
	})
	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recruitment_slot_booking_conflicts_total",
		Help: "Bookings rejected for capacity, availability or round status.",
	})
	ReviewerClaims = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recruitment_reviewer_claims_total",
		Help: "Won reviewer claims.",
	})
	ClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recruitment_reviewer_claim_conflicts_total",
		Help: "Reviewer claims lost to an earlier claimer.",
	})
	Eliminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recruitment_eliminations_total",
		Help: "Candidates eliminated, by sweep.",
	}, []string{"sweep"})
	MailsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recruitment_mails_enqueued_total",
		Help: "Mail jobs published to the queue.",
	})
	MailsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recruitment_mails_sent_total",
		Help: "Mail jobs delivered by the worker.",
	})
	MailsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recruitment_mails_failed_total",
		Help: "Mail jobs the worker could not deliver.",
	})
)
