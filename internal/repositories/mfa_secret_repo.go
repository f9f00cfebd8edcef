package repositories

import (
	"context"
	"time"

	"github.com/catkeep/authcore/internal/database"
	"github.com/catkeep/authcore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const mfaSecretColumns = `id, user_id, encrypted_value, iv, is_active, failed_attempts, last_used_at, created_at, revoked_at`

type MFASecretRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewMFASecretRepository(db *database.DB) *MFASecretRepository {
	return &MFASecretRepository{db: db, pool: db.Pool}
}

func scanMFASecretRow(scanner rowScanner) (*models.MFASecret, error) {
	var secret models.MFASecret

	err := scanner.Scan(
		&secret.ID, &secret.UserID, &secret.EncryptedValue, &secret.IV,
		&secret.IsActive, &secret.FailedAttempts,
		&secret.LastUsedAt, &secret.CreatedAt, &secret.RevokedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &secret, nil
}

// ActivateSecret revokes any currently active secret for the user and inserts
// the new one as active, atomically. The partial unique index on
// (user_id) WHERE is_active backstops the transaction.
func (r *MFASecretRepository) ActivateSecret(ctx context.Context, secret *models.MFASecret) (*models.MFASecret, error) {
	secret.ID = uuid.New().String()
	secret.IsActive = true
	secret.CreatedAt = time.Now()

	var created *models.MFASecret
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE mfa_secrets SET is_active = FALSE, revoked_at = NOW() WHERE user_id = $1 AND is_active`,
			secret.UserID,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		query := `
			INSERT INTO mfa_secrets (id, user_id, encrypted_value, iv, is_active, failed_attempts, created_at)
			VALUES ($1, $2, $3, $4, TRUE, 0, $5)
			RETURNING ` + mfaSecretColumns

		created, err = scanMFASecretRow(tx.QueryRow(ctx, query,
			secret.ID, secret.UserID, secret.EncryptedValue, secret.IV, secret.CreatedAt,
		))
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *MFASecretRepository) GetActive(ctx context.Context, userID string) (*models.MFASecret, error) {
	query := `SELECT ` + mfaSecretColumns + ` FROM mfa_secrets WHERE user_id = $1 AND is_active`

	return scanMFASecretRow(r.pool.QueryRow(ctx, query, userID))
}

func (r *MFASecretRepository) HasActive(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM mfa_secrets WHERE user_id = $1 AND is_active)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *MFASecretRepository) IncrementFailedAttempts(ctx context.Context, secretID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE mfa_secrets SET failed_attempts = failed_attempts + 1 WHERE id = $1`,
		secretID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// TouchLastUsed records a successful verification and resets the failure counter.
func (r *MFASecretRepository) TouchLastUsed(ctx context.Context, secretID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE mfa_secrets SET last_used_at = NOW(), failed_attempts = 0 WHERE id = $1`,
		secretID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RevokeAllActive disables MFA for the user. Returns the number of secrets revoked.
func (r *MFASecretRepository) RevokeAllActive(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE mfa_secrets SET is_active = FALSE, revoked_at = NOW() WHERE user_id = $1 AND is_active`,
		userID,
	)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
