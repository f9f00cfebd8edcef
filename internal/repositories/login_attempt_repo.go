package repositories

import (
	"context"
	"time"

	"github.com/catkeep/authcore/internal/database"
	"github.com/catkeep/authcore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// Record persists a login attempt. Attempts against unknown usernames are kept
// under the raw username so probing shows up in the history.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	attempt.ID = uuid.New().String()
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now()
	}

	query := `
		INSERT INTO login_attempts (id, username, ip_address, success, attempted_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.ID, attempt.Username, attempt.IPAddress, attempt.Success, attempt.AttemptedAt,
	)
	return database.MapPostgresError(err)
}

// CountFailedSince returns the number of failed attempts for the username with
// attempted_at strictly after the cutoff.
func (r *LoginAttemptRepository) CountFailedSince(ctx context.Context, username string, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE username = $1 AND success = FALSE AND attempted_at > $2
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, username, cutoff).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteOlderThan prunes attempts outside any lockout window. Run periodically
// in the background.
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
