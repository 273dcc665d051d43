package review

import (
	"context"

	"github.com/google/uuid"

	"recruitment/internal/candidate"
	"recruitment/internal/common"
	"recruitment/internal/slot"
)

// Slots is the slice of the allocator the review workflow needs.
type Slots interface {
	Get(ctx context.Context, id uuid.UUID) (*slot.Slot, error)
	ListByReviewer(ctx context.Context, adminID uuid.UUID) ([]slot.Slot, error)
	CompleteSlot(ctx context.Context, slotID uuid.UUID) error
}

// Progression is the slice of the round state machine the workflow drives.
type Progression interface {
	Get(ctx context.Context, id uuid.UUID) (*candidate.Candidate, error)
	RecordReview(ctx context.Context, id uuid.UUID, round candidate.Round, review string, task *candidate.TaskAssignment) error
}

// Service is a thin layer composing the allocator and the round state
// machine for reviewer-facing operations.
type Service struct {
	slots       Slots
	progression Progression
}

// NewService creates a review workflow.
func NewService(slots Slots, progression Progression) *Service {
	return &Service{slots: slots, progression: progression}
}

// Occupant is a slot occupant still awaiting a review.
type Occupant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PendingSlot is a claimed slot with at least one unreviewed occupant.
type PendingSlot struct {
	Slot       slot.Slot  `json:"slot"`
	Unreviewed []Occupant `json:"unreviewed"`
}

// ListPending returns the admin's claimed slots that still have an occupant
// whose review for the slot's round is unset. Pure read.
func (s *Service) ListPending(ctx context.Context, adminID uuid.UUID) ([]PendingSlot, error) {
	claimed, err := s.slots.ListByReviewer(ctx, adminID)
	if err != nil {
		return nil, err
	}
	var pending []PendingSlot
	for _, sl := range claimed {
		var unreviewed []Occupant
		for _, userID := range sl.Users {
			c, err := s.progression.Get(ctx, userID)
			if err != nil {
				if common.Is(err, common.CodeNotFound) {
					continue
				}
				return nil, err
			}
			if c.RoundState(sl.Round).Review == nil {
				unreviewed = append(unreviewed, Occupant{ID: c.ID, Name: c.Name})
			}
		}
		if len(unreviewed) > 0 {
			pending = append(pending, PendingSlot{Slot: sl, Unreviewed: unreviewed})
		}
	}
	return pending, nil
}

// Submit records a review outcome for one occupant of a slot and marks the
// slot completed. Rounds 1-2 require the next take-home task assignment.
func (s *Service) Submit(ctx context.Context, adminID, slotID, candidateID uuid.UUID, review string, task *candidate.TaskAssignment) error {
	sl, err := s.slots.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if !sl.HasOccupant(candidateID) {
		return common.NewError(common.CodeForbidden, "candidate is not part of this slot", nil)
	}
	if _, ok := candidate.ParseRound(int(sl.Round)); !ok {
		return common.NewError(common.CodeBadRequest, "invalid round number in slot", nil)
	}
	if err := s.progression.RecordReview(ctx, candidateID, sl.Round, review, task); err != nil {
		return err
	}
	return s.slots.CompleteSlot(ctx, slotID)
}
