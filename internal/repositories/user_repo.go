package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/catkeep/authcore/internal/database"
	"github.com/catkeep/authcore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, email, password_hash, is_active, role, account_locked_until, last_password_change, password_expires_at, created_at, updated_at`

type UserRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.IsActive, &user.Role,
		&user.AccountLockedUntil, &user.LastPasswordChange, &user.PasswordExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

// Create inserts a user inside a serializable transaction. Creating an active
// admin goes through the same occupancy check as promotion, so a second
// active admin cannot enter through the creation path.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RoleCaretaker
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, is_active, role, last_password_change, password_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + userColumns

	var created *models.User
	err := r.db.WithSerializableTransaction(ctx, func(tx pgx.Tx) error {
		if user.Role == models.RoleAdmin && user.IsActive {
			if err := ensureNoOtherActiveAdmin(ctx, tx, user.ID); err != nil {
				return err
			}
		}

		row, err := scanUserRow(tx.QueryRow(ctx, query,
			user.ID, user.Username, user.Email, user.PasswordHash,
			user.IsActive, user.Role,
			user.LastPasswordChange, user.PasswordExpiresAt,
			user.CreatedAt, user.UpdatedAt,
		))
		if err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetLockUntil sets or clears the temporary account lock. A nil until unlocks.
func (r *UserRepository) SetLockUntil(ctx context.Context, userID string, until *time.Time) error {
	query := `UPDATE users SET account_locked_until = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, until)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $2, last_password_change = NOW(), password_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, userID, passwordHash, expiresAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateRole changes a user's role inside a serializable transaction so the
// single-active-admin rule cannot be raced: promoting to admin fails with
// ErrDuplicateActiveAdmin while another active admin exists.
func (r *UserRepository) UpdateRole(ctx context.Context, userID string, role models.Role) error {
	return r.db.WithSerializableTransaction(ctx, func(tx pgx.Tx) error {
		if role == models.RoleAdmin {
			if err := ensureNoOtherActiveAdmin(ctx, tx, userID); err != nil {
				return err
			}
		}

		tag, err := tx.Exec(ctx,
			`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`,
			userID, role,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// SetActive enables or disables an account. Re-enabling an admin goes through
// the same occupancy check as promotion.
func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	return r.db.WithSerializableTransaction(ctx, func(tx pgx.Tx) error {
		if active {
			var role models.Role
			err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
			if err != nil {
				return database.MapPostgresError(err)
			}
			if role == models.RoleAdmin {
				if err := ensureNoOtherActiveAdmin(ctx, tx, userID); err != nil {
					return err
				}
			}
		}

		tag, err := tx.Exec(ctx,
			`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`,
			userID, active,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

func ensureNoOtherActiveAdmin(ctx context.Context, tx pgx.Tx, userID string) error {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = TRUE AND id <> $2`,
		models.RoleAdmin, userID,
	).Scan(&count)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if count > 0 {
		return models.ErrDuplicateActiveAdmin
	}
	return nil
}
