package slot

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"recruitment/internal/candidate"
	"recruitment/internal/common"
)

// Repository persists slots in Postgres. Every mutation is a conditional
// single-statement write so concurrent bookings and claims can never
// over-fill a slot or double-assign a reviewer.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const slotColumns = `id, round, scheduled_at, is_available, is_ready, status, meet_link, users, admins, reviewer_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*Slot, error) {
	var s Slot
	var round int
	var meetLink sql.NullString
	var users, admins []string
	var reviewer uuid.NullUUID
	err := row.Scan(&s.ID, &round, &s.ScheduledAt, &s.IsAvailable, &s.IsReady, &s.Status,
		&meetLink, pq.Array(&users), pq.Array(&admins), &reviewer, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "slot not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load slot", err)
	}
	if r, ok := candidate.ParseRound(round); ok {
		s.Round = r
	}
	if meetLink.Valid {
		s.MeetLink = &meetLink.String
	}
	if reviewer.Valid {
		id := reviewer.UUID
		s.Reviewer = &id
	}
	if s.Users, err = parseIDs(users); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to parse slot occupants", err)
	}
	if s.Admins, err = parseIDs(admins); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to parse slot admins", err)
	}
	return &s, nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Create inserts a fresh slot for a round and time.
func (r *Repository) Create(ctx context.Context, round candidate.Round, at time.Time) (*Slot, error) {
	id := uuid.New()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO slots (id, round, scheduled_at, status)
		VALUES ($1, $2, $3, $4)
	`, id, int(round), at, StatusUpcoming)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to create slot", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a slot.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
	return scanSlot(row)
}

func (r *Repository) queryMany(ctx context.Context, query string, args ...any) ([]Slot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list slots", err)
	}
	defer rows.Close()
	var res []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	return res, rows.Err()
}

// ListAvailable returns bookable slots for a round at or after asOf.
func (r *Repository) ListAvailable(ctx context.Context, round candidate.Round, asOf time.Time) ([]Slot, error) {
	return r.queryMany(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE round = $1 AND is_available AND scheduled_at >= $2
		ORDER BY scheduled_at
	`, int(round), asOf)
}

// ListByStatus returns slots in a status, optionally only ready ones.
func (r *Repository) ListByStatus(ctx context.Context, status string, readyOnly bool) ([]Slot, error) {
	if readyOnly {
		return r.queryMany(ctx, `
			SELECT `+slotColumns+` FROM slots WHERE status = $1 AND is_ready ORDER BY scheduled_at
		`, status)
	}
	return r.queryMany(ctx, `
		SELECT `+slotColumns+` FROM slots WHERE status = $1 ORDER BY scheduled_at
	`, status)
}

// ListByReviewer returns slots claimed by an admin.
func (r *Repository) ListByReviewer(ctx context.Context, adminID uuid.UUID) ([]Slot, error) {
	return r.queryMany(ctx, `
		SELECT `+slotColumns+` FROM slots WHERE reviewer_id = $1 ORDER BY scheduled_at
	`, adminID)
}

// FindByOccupant returns the slot a candidate occupies for a round, or nil.
func (r *Repository) FindByOccupant(ctx context.Context, candidateID uuid.UUID, round candidate.Round) (*Slot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+slotColumns+` FROM slots WHERE round = $2 AND $1 = ANY(users) LIMIT 1
	`, candidateID, int(round))
	s, err := scanSlot(row)
	if common.Is(err, common.CodeNotFound) {
		return nil, nil
	}
	return s, err
}

// Book attaches a candidate to a slot and flips the candidate's round
// status to pending in one transaction. The occupant append is guarded on
// availability and capacity inside the statement itself, so two racing
// bookings cannot both land on the last seat.
func (r *Repository) Book(ctx context.Context, slotID, candidateID uuid.UUID, round candidate.Round, capacity int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE slots SET
			users = array_append(users, $2),
			is_available = (cardinality(users) + 1 < $3),
			status = $4,
			updated_at = NOW()
		WHERE id = $1 AND is_available
			AND NOT ($2 = ANY(users))
			AND cardinality(users) < $3
	`, slotID, candidateID, capacity, StatusPending)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to book slot", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.explainBookFailure(ctx, slotID, candidateID)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE candidate_rounds SET status = $3
		WHERE candidate_id = $1 AND round = $2 AND status = $4
	`, candidateID, int(round), candidate.StatusPending, candidate.StatusUpcoming)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to update round status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewError(common.CodeConflict, "round is already pending or completed", nil)
	}
	if err := tx.Commit(); err != nil {
		return common.NewError(common.CodeInternal, "failed to commit booking", err)
	}
	return nil
}

// explainBookFailure turns a zero-row booking update into a precise error.
func (r *Repository) explainBookFailure(ctx context.Context, slotID, candidateID uuid.UUID) error {
	s, err := r.GetByID(ctx, slotID)
	if err != nil {
		return err
	}
	if s.HasOccupant(candidateID) {
		// Re-booking the same slot is a no-op.
		return nil
	}
	if len(s.Users) >= Capacity(s.Round) {
		return common.NewError(common.CodeUnavailable, "slot is full", nil)
	}
	return common.NewError(common.CodeUnavailable, "slot is not available", nil)
}

// MarkReady flags the slot ready. Only occupants may do this; repeat calls
// are no-ops.
func (r *Repository) MarkReady(ctx context.Context, slotID, candidateID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE slots SET is_ready = TRUE, updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(users)
	`, slotID, candidateID)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to mark slot ready", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, slotID); err != nil {
			return err
		}
		return common.NewError(common.CodeForbidden, "candidate is not part of this slot", nil)
	}
	return nil
}

// ClaimReviewer assigns the reviewer and copies their meet link onto the
// slot. Compare-and-swap on the unset reviewer column: exactly one of N
// concurrent claimers wins.
func (r *Repository) ClaimReviewer(ctx context.Context, slotID, adminID uuid.UUID, meetLink string) (*Slot, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE slots SET reviewer_id = $2, meet_link = $3, updated_at = NOW()
		WHERE id = $1 AND reviewer_id IS NULL
	`, slotID, adminID, meetLink)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to claim slot", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, slotID); err != nil {
			return nil, err
		}
		return nil, common.NewError(common.CodeConflict, "slot already has a reviewer assigned", nil)
	}
	return r.GetByID(ctx, slotID)
}

// JoinObserver appends an admin to the slot. Requires a reviewer to be
// assigned already and the admin not to have joined before.
func (r *Repository) JoinObserver(ctx context.Context, slotID, adminID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE slots SET admins = array_append(admins, $2), updated_at = NOW()
		WHERE id = $1 AND reviewer_id IS NOT NULL AND NOT ($2 = ANY(admins))
	`, slotID, adminID)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to join slot", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s, err := r.GetByID(ctx, slotID)
		if err != nil {
			return err
		}
		if s.Reviewer == nil {
			return common.NewError(common.CodeBadRequest, "slot does not have a reviewer yet", nil)
		}
		return common.NewError(common.CodeConflict, "admin is already assigned to this slot", nil)
	}
	return nil
}

// MarkCompleted finalizes a slot after its review.
func (r *Repository) MarkCompleted(ctx context.Context, slotID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE slots SET status = $2, updated_at = NOW() WHERE id = $1
	`, slotID, StatusCompleted)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to complete slot", err)
	}
	return nil
}
