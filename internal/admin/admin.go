package admin

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"recruitment/internal/common"
)

// Admin is a reviewer. The access flag gates superadmin operations: slot
// creation and elimination sweeps.
type Admin struct {
	ID                    uuid.UUID  `json:"id"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	MeetLink              *string    `json:"meet_link,omitempty"`
	Access                bool       `json:"access"`
	RefreshToken          string     `json:"-"`
	RefreshTokenExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Repository persists admin records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const adminColumns = `id, name, email, meet_link, access, refresh_token, refresh_token_expires_at, created_at`

func scanAdmin(row *sql.Row) (*Admin, error) {
	var a Admin
	var meetLink, refreshToken sql.NullString
	var refreshExp sql.NullTime
	err := row.Scan(&a.ID, &a.Name, &a.Email, &meetLink, &a.Access, &refreshToken, &refreshExp, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "admin not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load admin", err)
	}
	if meetLink.Valid {
		a.MeetLink = &meetLink.String
	}
	a.RefreshToken = refreshToken.String
	if refreshExp.Valid {
		a.RefreshTokenExpiresAt = &refreshExp.Time
	}
	return &a, nil
}

// GetByID returns an admin.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
	return scanAdmin(row)
}

// GetByEmail returns an admin by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = $1`, email)
	return scanAdmin(row)
}

// CreateFromLogin provisions an admin on first sign-in.
func (r *Repository) CreateFromLogin(ctx context.Context, name, email string) (*Admin, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admins (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`, uuid.New(), name, email)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to create admin", err)
	}
	return r.GetByEmail(ctx, email)
}

// SetMeetLink stores the admin's personal meeting room link.
func (r *Repository) SetMeetLink(ctx context.Context, id uuid.UUID, meetLink string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE admins SET meet_link = $2, updated_at = NOW() WHERE id = $1
	`, id, meetLink)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to save meet link", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewError(common.CodeNotFound, "admin not found", nil)
	}
	return nil
}

// SaveRefreshToken stores the rotated refresh token.
func (r *Repository) SaveRefreshToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE admins SET refresh_token = $2, refresh_token_expires_at = $3, updated_at = NOW()
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
		UPDATE admins SET refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to clear refresh token", err)
	}
	return nil
}
