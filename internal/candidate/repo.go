package candidate

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"recruitment/internal/common"
)

// Repository persists candidate records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const candidateColumns = `id, name, email, reg_no, is_fresher, is_eliminated, current_round,
	round0_status, contact_no, branch, github_profile, project_link, project_text,
	domains, answers, management_question, management_answer,
	refresh_token, refresh_token_expires_at, created_at`

func scanCandidate(row *sql.Row) (*Candidate, error) {
	var c Candidate
	var contactNo, branch, github, projectLink, projectText, mgmtAnswer, refreshToken sql.NullString
	var mgmtQuestion sql.NullInt64
	var refreshExp sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.RegNo, &c.IsFresher, &c.IsEliminated, &c.CurrentRound,
		&c.Round0.Status, &contactNo, &branch, &github, &projectLink, &projectText,
		pq.Array(&c.Round0.Domains), pq.Array(&c.Round0.Answers), &mgmtQuestion, &mgmtAnswer,
		&refreshToken, &refreshExp, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "candidate not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load candidate", err)
	}
	c.Round0.ContactNo = contactNo.String
	c.Round0.Branch = branch.String
	c.Round0.GithubProfile = github.String
	c.Round0.ProjectLink = projectLink.String
	c.Round0.ProjectText = projectText.String
	c.Round0.ManagementQuestion = int(mgmtQuestion.Int64)
	c.Round0.ManagementAnswer = mgmtAnswer.String
	c.RefreshToken = refreshToken.String
	if refreshExp.Valid {
		c.RefreshTokenExpiresAt = &refreshExp.Time
	}
	return &c, nil
}

func (r *Repository) loadRounds(ctx context.Context, c *Candidate) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT round, status, review, task_title, task_description, task_deadline, task_link, task_submitted
		FROM candidate_rounds WHERE candidate_id = $1 ORDER BY round
	`, c.ID)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to load candidate rounds", err)
	}
	defer rows.Close()
	c.Rounds = make(map[Round]RoundState, len(Rounds))
	for rows.Next() {
		var n int
		var state RoundState
		if err := rows.Scan(&n, &state.Status, &state.Review, &state.TaskTitle, &state.TaskDescription,
			&state.TaskDeadline, &state.TaskLink, &state.TaskSubmitted); err != nil {
			return common.NewError(common.CodeInternal, "failed to scan candidate round", err)
		}
		if round, ok := ParseRound(n); ok {
			c.Rounds[round] = state
		}
	}
	return rows.Err()
}

// GetByID returns a candidate with round state attached.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Candidate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadRounds(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetByEmail returns a candidate by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Candidate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE email = $1`, email)
	c, err := scanCandidate(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadRounds(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateFromLogin provisions a candidate on first sign-in. Existing records
// are returned untouched.
func (r *Repository) CreateFromLogin(ctx context.Context, name, email, regNo string, isFresher bool) (*Candidate, error) {
	if existing, err := r.GetByEmail(ctx, email); err == nil {
		return existing, nil
	} else if !common.Is(err, common.CodeNotFound) {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	id := uuid.New()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO candidates (id, name, email, reg_no, is_fresher)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`, id, name, email, regNo, isFresher)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to create candidate", err)
	}
	for _, round := range Rounds {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO candidate_rounds (candidate_id, round, status)
			SELECT id, $2, $3 FROM candidates WHERE email = $1
			ON CONFLICT (candidate_id, round) DO NOTHING
		`, email, int(round), StatusUpcoming)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to create candidate round", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to commit candidate", err)
	}
	return r.GetByEmail(ctx, email)
}

// SaveRefreshToken stores the rotated refresh token.
func (r *Repository) SaveRefreshToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE candidates SET refresh_token = $2, refresh_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, token, expiresAt)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to save refresh token", err)
	}
	return nil
}

// ClearRefreshToken drops the stored refresh token on logout.
func (r *Repository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE candidates SET refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to clear refresh token", err)
	}
	return nil
}

// SubmitRoundZero stores the questionnaire and advances to round 1 in a
// single guarded write. Returns false when the candidate was not in round 0
// with a pending questionnaire.
func (r *Repository) SubmitRoundZero(ctx context.Context, id uuid.UUID, payload Round0) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE candidates SET
			contact_no = $2, branch = $3, github_profile = $4, project_link = $5, project_text = $6,
			domains = $7, answers = $8, management_question = $9, management_answer = $10,
			round0_status = $11, current_round = 1, updated_at = NOW()
		WHERE id = $1 AND current_round = 0 AND round0_status = $12 AND NOT is_eliminated
	`, id, payload.ContactNo, nullable(payload.Branch), nullable(payload.GithubProfile),
		nullable(payload.ProjectLink), nullable(payload.ProjectText),
		pq.Array(payload.Domains), pq.Array(payload.Answers),
		payload.ManagementQuestion, payload.ManagementAnswer,
		StatusCompleted, StatusPending)
	if err != nil {
		return false, common.NewError(common.CodeInternal, "failed to submit round 0", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SubmitTask records a task link for a round, guarded on an unexpired
// deadline and the task not being submitted yet.
func (r *Repository) SubmitTask(ctx context.Context, id uuid.UUID, round Round, taskLink string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE candidate_rounds SET task_link = $3, task_submitted = TRUE
		WHERE candidate_id = $1 AND round = $2
			AND NOT task_submitted
			AND task_deadline IS NOT NULL AND task_deadline > NOW()
	`, id, int(round), taskLink)
	if err != nil {
		return false, common.NewError(common.CodeInternal, "failed to submit task", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RecordReview completes a round with its review and, for rounds 1-2,
// stores the take-home task and advances the candidate's current round.
// Both writes ride one transaction; a round already completed is left alone.
func (r *Repository) RecordReview(ctx context.Context, id uuid.UUID, round Round, review string, task *TaskAssignment) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, common.NewError(common.CodeInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if task != nil {
		res, err = tx.ExecContext(ctx, `
			UPDATE candidate_rounds SET review = $3, status = $4,
				task_title = $5, task_description = $6, task_deadline = $7
			WHERE candidate_id = $1 AND round = $2 AND status <> $4
		`, id, int(round), review, StatusCompleted, task.Title, task.Description, task.Deadline)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE candidate_rounds SET review = $3, status = $4
			WHERE candidate_id = $1 AND round = $2 AND status <> $4
		`, id, int(round), review, StatusCompleted)
	}
	if err != nil {
		return false, common.NewError(common.CodeInternal, "failed to record review", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if round.HasTask() {
		_, err = tx.ExecContext(ctx, `
			UPDATE candidates SET current_round = current_round + 1, updated_at = NOW()
			WHERE id = $1 AND current_round = $2
		`, id, int(round))
		if err != nil {
			return false, common.NewError(common.CodeInternal, "failed to advance round", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, common.NewError(common.CodeInternal, "failed to commit review", err)
	}
	return true, nil
}

// EliminateNonFreshers marks every non-fresher eliminated. Idempotent: a
// second sweep reports zero newly eliminated candidates.
func (r *Repository) EliminateNonFreshers(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE candidates SET is_eliminated = TRUE, updated_at = NOW()
		WHERE NOT is_fresher AND NOT is_eliminated
	`)
	if err != nil {
		return 0, common.NewError(common.CodeInternal, "failed to run non-fresher sweep", err)
	}
	return res.RowsAffected()
}

// EliminateTaskDefaulters marks candidates who never submitted the round's
// task. Already-eliminated candidates are left unchanged.
func (r *Repository) EliminateTaskDefaulters(ctx context.Context, round Round) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE candidates c SET is_eliminated = TRUE, updated_at = NOW()
		FROM candidate_rounds cr
		WHERE cr.candidate_id = c.id AND cr.round = $1
			AND NOT cr.task_submitted AND NOT c.is_eliminated
	`, int(round))
	if err != nil {
		return 0, common.NewError(common.CodeInternal, "failed to run task sweep", err)
	}
	return res.RowsAffected()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
