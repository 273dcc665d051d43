package slot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"recruitment/internal/admin"
	"recruitment/internal/candidate"
	"recruitment/internal/common"
	"recruitment/internal/metrics"
)

// Store is the slot persistence surface. The Postgres Repository implements
// it; tests use in-memory fakes with the same conditional-write semantics.
type Store interface {
	Create(ctx context.Context, round candidate.Round, at time.Time) (*Slot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListAvailable(ctx context.Context, round candidate.Round, asOf time.Time) ([]Slot, error)
	ListByStatus(ctx context.Context, status string, readyOnly bool) ([]Slot, error)
	ListByReviewer(ctx context.Context, adminID uuid.UUID) ([]Slot, error)
	Book(ctx context.Context, slotID, candidateID uuid.UUID, round candidate.Round, capacity int) error
	MarkReady(ctx context.Context, slotID, candidateID uuid.UUID) error
	ClaimReviewer(ctx context.Context, slotID, adminID uuid.UUID, meetLink string) (*Slot, error)
	JoinObserver(ctx context.Context, slotID, adminID uuid.UUID) error
	MarkCompleted(ctx context.Context, slotID uuid.UUID) error
	FindByOccupant(ctx context.Context, candidateID uuid.UUID, round candidate.Round) (*Slot, error)
}

// CandidateDirectory resolves candidate records for gate checks and mail.
type CandidateDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*candidate.Candidate, error)
}

// AdminDirectory resolves admin records for reviewer claims.
type AdminDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*admin.Admin, error)
}

// Notifier delivers a message best-effort. Failures are logged, never
// propagated to the caller.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Allocator mediates all slot occupancy changes.
type Allocator struct {
	store      Store
	candidates CandidateDirectory
	admins     AdminDirectory
	notifier   Notifier
}

// NewAllocator creates an allocator.
func NewAllocator(store Store, candidates CandidateDirectory, admins AdminDirectory, notifier Notifier) *Allocator {
	return &Allocator{store: store, candidates: candidates, admins: admins, notifier: notifier}
}

// Create adds a slot for a round and time. Superadmin gating happens at the
// transport layer.
func (a *Allocator) Create(ctx context.Context, round int, at time.Time) (*Slot, error) {
	r, ok := candidate.ParseRound(round)
	if !ok {
		return nil, common.NewError(common.CodeBadRequest, "invalid or missing round number", nil)
	}
	if at.IsZero() {
		return nil, common.NewError(common.CodeBadRequest, "date and time are required", nil)
	}
	return a.store.Create(ctx, r, at)
}

// ListAvailable returns bookable slots for the candidate's round at or
// after asOf.
func (a *Allocator) ListAvailable(ctx context.Context, candidateID uuid.UUID, round int, asOf time.Time) ([]Slot, error) {
	r, ok := candidate.ParseRound(round)
	if !ok {
		return nil, common.NewError(common.CodeBadRequest, "invalid round number", nil)
	}
	c, err := a.candidates.GetByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.IsEliminated {
		return nil, common.NewError(common.CodeNotEligible, "candidate is eliminated", nil)
	}
	if status := c.RoundState(r).Status; status != candidate.StatusUpcoming {
		return nil, common.NewError(common.CodeForbidden, fmt.Sprintf("round %d is already %s", round, status), nil)
	}
	return a.store.ListAvailable(ctx, r, asOf)
}

// ListByStatus returns slots for the admin dashboard. "ready" selects
// pending slots whose occupants have all signalled readiness.
func (a *Allocator) ListByStatus(ctx context.Context, status string) ([]Slot, error) {
	switch status {
	case StatusUpcoming, StatusPending, StatusCompleted:
		return a.store.ListByStatus(ctx, status, false)
	case "ready":
		return a.store.ListByStatus(ctx, StatusPending, true)
	default:
		return nil, common.NewError(common.CodeBadRequest, "invalid slot status", nil)
	}
}

// Book assigns the candidate to the slot and flips their round status to
// pending as one atomic unit. Booking a slot the candidate already occupies
// is a no-op.
func (a *Allocator) Book(ctx context.Context, candidateID, slotID uuid.UUID) error {
	c, err := a.candidates.GetByID(ctx, candidateID)
	if err != nil {
		return err
	}
	if c.IsEliminated {
		return common.NewError(common.CodeNotEligible, "candidate is eliminated", nil)
	}
	s, err := a.store.GetByID(ctx, slotID)
	if err != nil {
		return err
	}
	if status := c.RoundState(s.Round).Status; status != candidate.StatusUpcoming {
		if s.HasOccupant(candidateID) {
			return nil
		}
		metrics.BookingConflicts.Inc()
		return common.NewError(common.CodeConflict, fmt.Sprintf("your round %d slot is already %s", s.Round, status), nil)
	}
	if !s.IsAvailable {
		metrics.BookingConflicts.Inc()
		return common.NewError(common.CodeUnavailable, "slot is not available", nil)
	}
	if err := a.store.Book(ctx, slotID, candidateID, s.Round, Capacity(s.Round)); err != nil {
		if common.Is(err, common.CodeUnavailable) || common.Is(err, common.CodeConflict) {
			metrics.BookingConflicts.Inc()
		}
		return err
	}
	metrics.Bookings.Inc()
	return nil
}

// MarkReady flags the slot ready on behalf of an occupant. Idempotent.
func (a *Allocator) MarkReady(ctx context.Context, candidateID, slotID uuid.UUID) error {
	return a.store.MarkReady(ctx, slotID, candidateID)
}

// ClaimAsReviewer assigns the admin as the slot's sole reviewer, copies
// their meet link onto the slot and mails every occupant. Exactly one of N
// concurrent claimers wins; the rest get a conflict.
func (a *Allocator) ClaimAsReviewer(ctx context.Context, adminID, slotID uuid.UUID) (*Slot, error) {
	adm, err := a.admins.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if adm.MeetLink == nil || *adm.MeetLink == "" {
		return nil, common.NewError(common.CodeBadRequest, "meet link not found in admin profile", nil)
	}
	s, err := a.store.ClaimReviewer(ctx, slotID, adminID, *adm.MeetLink)
	if err != nil {
		if common.Is(err, common.CodeConflict) {
			metrics.ClaimConflicts.Inc()
		}
		return nil, err
	}
	metrics.ReviewerClaims.Inc()
	a.notifyOccupants(ctx, s)
	return s, nil
}

// JoinAsObserver appends the admin to a claimed slot.
func (a *Allocator) JoinAsObserver(ctx context.Context, adminID, slotID uuid.UUID) (*Slot, error) {
	if _, err := a.admins.GetByID(ctx, adminID); err != nil {
		return nil, err
	}
	if err := a.store.JoinObserver(ctx, slotID, adminID); err != nil {
		return nil, err
	}
	return a.store.GetByID(ctx, slotID)
}

// CurrentFor returns the slot the candidate occupies for a round, or nil.
func (a *Allocator) CurrentFor(ctx context.Context, candidateID uuid.UUID, round int) (*Slot, error) {
	r, ok := candidate.ParseRound(round)
	if !ok {
		return nil, nil
	}
	return a.store.FindByOccupant(ctx, candidateID, r)
}

// Get returns a slot by id.
func (a *Allocator) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return a.store.GetByID(ctx, id)
}

// ListByReviewer returns slots the admin has claimed.
func (a *Allocator) ListByReviewer(ctx context.Context, adminID uuid.UUID) ([]Slot, error) {
	return a.store.ListByReviewer(ctx, adminID)
}

// CompleteSlot finalizes a slot once its review is in.
func (a *Allocator) CompleteSlot(ctx context.Context, slotID uuid.UUID) error {
	return a.store.MarkCompleted(ctx, slotID)
}

func (a *Allocator) notifyOccupants(ctx context.Context, s *Slot) {
	if a.notifier == nil || s.MeetLink == nil {
		return
	}
	subject := "Your Interview Meet Link"
	body := meetLinkBody(*s.MeetLink)
	for _, userID := range s.Users {
		c, err := a.candidates.GetByID(ctx, userID)
		if err != nil {
			log.Printf("claim notify: lookup occupant %s failed: %v", userID, err)
			continue
		}
		if err := a.notifier.Send(ctx, c.Email, subject, body); err != nil {
			log.Printf("claim notify: send to %s failed: %v", c.Email, err)
		}
	}
}

func meetLinkBody(meetLink string) string {
	return fmt.Sprintf(`<div style="font-family: poppins, sans-serif; padding: 10px;">`+
		`<h2 style="color: #007bff;">Interview Meet Link</h2>`+
		`<p>Hello,</p><p>Below are your Round details:</p>`+
		`<p><strong>Meet Link:</strong> <a href="%s" style="color: #28a745; text-decoration: none;">Join Meeting</a></p>`+
		`<p>Please join on time. Wishing you all the best!</p><br>`+
		`<p>Regards,</p><p><strong>Recruitment Team</strong></p></div>`, meetLink)
}
