package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/marketgate/internal/data/pgxutil"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	apperrors "github.com/target/marketgate/internal/errors"
	"github.com/target/marketgate/internal/ports"
)

var _ ports.UserRepository = (*UserRepo)(nil)

const userColumns = `id::text AS id, email, password_hash, role, business_id, first_name, last_name,
	avatar_url, provider_subject, created_at, updated_at`

// userRow is the scan target for users rows.
type userRow struct {
	ID              string    `db:"id"`
	Email           string    `db:"email"`
	PasswordHash    string    `db:"password_hash"`
	Role            string    `db:"role"`
	BusinessID      string    `db:"business_id"`
	FirstName       string    `db:"first_name"`
	LastName        string    `db:"last_name"`
	AvatarURL       string    `db:"avatar_url"`
	ProviderSubject *string   `db:"provider_subject"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r userRow) user() *domainauth.User {
	u := &domainauth.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         domainauth.Role(r.Role),
		BusinessID:   r.BusinessID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		AvatarURL:    r.AvatarURL,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.ProviderSubject != nil {
		u.ProviderSubject = *r.ProviderSubject
	}
	return u
}

// UserRepo provides database operations for marketplace accounts.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

// Create inserts a new account. Email is stored lower-cased.
func (r *UserRepo) Create(ctx context.Context, in ports.CreateUserInput) (*domainauth.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, apperrors.ValidationField("email", "email is required")
	}
	if !in.Role.Valid() {
		return nil, apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", in.Role))
	}

	var subject *string
	if s := strings.TrimSpace(in.ProviderSubject); s != "" {
		subject = &s
	}
	now := r.timeProvider.Now().UTC()

	return r.queryOne(ctx, `
		INSERT INTO users (
			id, email, password_hash, role, business_id, first_name, last_name, avatar_url,
			provider_subject, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+userColumns,
		uuid.NewString(),
		email,
		in.PasswordHash,
		string(in.Role),
		in.BusinessID,
		in.FirstName,
		in.LastName,
		in.AvatarURL,
		subject,
		now,
	)
}

// GetByID retrieves an account by ID. Malformed IDs are reported as not found.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domainauth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFound("user not found")
	}
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves an account by email, case-insensitively.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domainauth.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.NotFound("user not found")
	}
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, email)
}

// GetByProviderSubject retrieves the account linked to an identity provider subject.
func (r *UserRepo) GetByProviderSubject(ctx context.Context, subject string) (*domainauth.User, error) {
	if subject == "" {
		return nil, apperrors.NotFound("user not found")
	}
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE provider_subject = $1`, subject)
}

// LinkProviderSubject records the provider subject on an existing account.
func (r *UserRepo) LinkProviderSubject(ctx context.Context, id, subject string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NotFound("user not found")
	}
	if strings.TrimSpace(subject) == "" {
		return apperrors.ValidationField("provider_subject", "provider subject is required")
	}

	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx,
			`UPDATE users SET provider_subject = $2, updated_at = $3 WHERE id = $1`,
			id, subject, r.timeProvider.Now().UTC())
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return r.mapErr(err, "link provider subject")
	}
	if affected == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

func (r *UserRepo) queryOne(ctx context.Context, query string, args ...any) (*domainauth.User, error) {
	var row userRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, r.mapErr(err, "query users")
	}
	return row.user(), nil
}

func (r *UserRepo) mapErr(err error, op string) error {
	mapped := apperrors.MapDBError(err)
	var appErr *apperrors.AppError
	if errors.As(mapped, &appErr) {
		return mapped
	}
	return fmt.Errorf("%s: %w", op, err)
}
