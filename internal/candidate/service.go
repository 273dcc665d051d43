package candidate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"recruitment/internal/common"
)

// Store is the persistence surface the progression engine drives. The
// Postgres Repository implements it; tests use in-memory fakes.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Candidate, error)
	SubmitRoundZero(ctx context.Context, id uuid.UUID, payload Round0) (bool, error)
	SubmitTask(ctx context.Context, id uuid.UUID, round Round, taskLink string) (bool, error)
	RecordReview(ctx context.Context, id uuid.UUID, round Round, review string, task *TaskAssignment) (bool, error)
	EliminateNonFreshers(ctx context.Context) (int64, error)
	EliminateTaskDefaulters(ctx context.Context, round Round) (int64, error)
}

// Service is the round progression state machine. It owns every rule about
// how a candidate moves between rounds; slot occupancy is the allocator's
// problem.
type Service struct {
	store Store
}

// NewService creates a progression service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns a candidate record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Candidate, error) {
	return s.store.GetByID(ctx, id)
}

// SubmitRoundZero stores the questionnaire and moves the candidate into
// round 1. Valid exactly once, while the candidate is still in round 0.
func (s *Service) SubmitRoundZero(ctx context.Context, id uuid.UUID, payload Round0) error {
	if err := validateRound0(payload); err != nil {
		return err
	}
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.IsEliminated {
		return common.NewError(common.CodeNotEligible, "candidate is eliminated", nil)
	}
	if c.CurrentRound != 0 || c.Round0.Status != StatusPending {
		return common.NewError(common.CodeNotEligible, "not eligible for round 0 submission", nil)
	}
	ok, err := s.store.SubmitRoundZero(ctx, id, payload)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewError(common.CodeNotEligible, "not eligible for round 0 submission", nil)
	}
	return nil
}

// SubmitTask records the take-home task link for the most recently reviewed
// round. The gate: that round's task is unsubmitted and its deadline has
// not passed.
func (s *Service) SubmitTask(ctx context.Context, id uuid.UUID, taskLink string) error {
	if strings.TrimSpace(taskLink) == "" {
		return common.NewError(common.CodeBadRequest, "task link is required", nil)
	}
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.IsEliminated {
		return common.NewError(common.CodeNotEligible, "candidate is eliminated", nil)
	}
	// Review of round N advances the candidate to N+1; the task belongs to
	// the round just reviewed.
	round, ok := ParseRound(c.CurrentRound - 1)
	if !ok || !round.HasTask() {
		return common.NewError(common.CodeNotEligible, "not eligible for task submission", nil)
	}
	state := c.RoundState(round)
	if state.TaskSubmitted {
		return common.NewError(common.CodeNotEligible, "task already submitted", nil)
	}
	if state.TaskDeadline == nil || !state.TaskDeadline.After(time.Now().UTC()) {
		return common.NewError(common.CodeNotEligible, "task deadline has passed", nil)
	}
	ok, err = s.store.SubmitTask(ctx, id, round, taskLink)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewError(common.CodeNotEligible, "not eligible for task submission", nil)
	}
	return nil
}

// RecordReview completes a round with its review. Rounds 1-2 also hand out
// the next take-home task and advance the current round; round 3 only marks
// completion.
func (s *Service) RecordReview(ctx context.Context, id uuid.UUID, round Round, review string, task *TaskAssignment) error {
	if strings.TrimSpace(review) == "" {
		return common.NewError(common.CodeBadRequest, "review is required", nil)
	}
	if round.HasTask() {
		if task == nil || strings.TrimSpace(task.Title) == "" || strings.TrimSpace(task.Description) == "" || task.Deadline.IsZero() {
			return common.NewError(common.CodeBadRequest, "task title, description and deadline are required", nil)
		}
	} else {
		task = nil
	}
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.IsEliminated {
		return common.NewError(common.CodeNotEligible, "candidate is eliminated", nil)
	}
	ok, err := s.store.RecordReview(ctx, id, round, review, task)
	if err != nil {
		return err
	}
	if !ok {
		return common.NewError(common.CodeNotEligible, "round is already completed", nil)
	}
	return nil
}

// SweepNonFreshers eliminates every non-fresher still in the pipeline and
// returns the number of newly eliminated candidates.
func (s *Service) SweepNonFreshers(ctx context.Context) (int64, error) {
	return s.store.EliminateNonFreshers(ctx)
}

// SweepTaskDefaulters eliminates candidates who never submitted the given
// round's task.
func (s *Service) SweepTaskDefaulters(ctx context.Context, round Round) (int64, error) {
	if !round.HasTask() {
		return 0, common.NewError(common.CodeBadRequest, "round has no task stage", nil)
	}
	return s.store.EliminateTaskDefaulters(ctx, round)
}

func validateRound0(payload Round0) error {
	if strings.TrimSpace(payload.ContactNo) == "" {
		return common.NewError(common.CodeBadRequest, "contact number is required", nil)
	}
	if len(payload.Domains) == 0 {
		return common.NewError(common.CodeBadRequest, "domain selection is required", nil)
	}
	if len(payload.Domains) > 2 {
		return common.NewError(common.CodeBadRequest, "at most two domains are allowed", nil)
	}
	if len(payload.Answers) == 0 {
		return common.NewError(common.CodeBadRequest, "answers are required", nil)
	}
	for _, answer := range payload.Answers {
		if strings.TrimSpace(answer) == "" {
			return common.NewError(common.CodeBadRequest, "all answers are required", nil)
		}
	}
	if payload.ManagementQuestion < 1 || payload.ManagementQuestion > ManagementQuestionCount {
		return common.NewError(common.CodeBadRequest, "invalid management question", nil)
	}
	if strings.TrimSpace(payload.ManagementAnswer) == "" {
		return common.NewError(common.CodeBadRequest, "management answer is required", nil)
	}
	return nil
}
