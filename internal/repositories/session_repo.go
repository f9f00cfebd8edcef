package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/catkeep/authcore/internal/database"
	"github.com/catkeep/authcore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, token_hash, user_id, ip_address, device_fingerprint, tls_version, tls_cipher_suite, certificate_fingerprint, last_activity, expires_at, created_at`

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var session models.Session

	err := scanner.Scan(
		&session.ID, &session.TokenHash, &session.UserID,
		&session.IPAddress, &session.DeviceFingerprint,
		&session.TLSVersion, &session.TLSCipherSuite, &session.CertificateFingerprint,
		&session.LastActivity, &session.ExpiresAt, &session.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

// Upsert creates a session row keyed by token hash, or refreshes an existing
// one with the new expiry and connection metadata.
func (r *SessionRepository) Upsert(ctx context.Context, session *models.Session) (*models.Session, error) {
	session.ID = uuid.New().String()
	now := time.Now()

	query := `
		INSERT INTO user_sessions (id, token_hash, user_id, ip_address, device_fingerprint, tls_version, tls_cipher_suite, certificate_fingerprint, last_activity, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $9)
		ON CONFLICT (token_hash) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			ip_address = EXCLUDED.ip_address,
			device_fingerprint = EXCLUDED.device_fingerprint,
			tls_version = EXCLUDED.tls_version,
			tls_cipher_suite = EXCLUDED.tls_cipher_suite,
			certificate_fingerprint = EXCLUDED.certificate_fingerprint,
			last_activity = EXCLUDED.last_activity,
			expires_at = EXCLUDED.expires_at
		RETURNING ` + sessionColumns

	return scanSessionRow(r.pool.QueryRow(ctx, query,
		session.ID, session.TokenHash, session.UserID,
		session.IPAddress, session.DeviceFingerprint,
		session.TLSVersion, session.TLSCipherSuite, session.CertificateFingerprint,
		now, session.ExpiresAt,
	))
}

func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE token_hash = $1`

	return scanSessionRow(r.pool.QueryRow(ctx, query, tokenHash))
}

// Touch advances last_activity for an unexpired session. Zero rows affected is
// not an error; the session may already be gone.
func (r *SessionRepository) Touch(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET last_activity = NOW() WHERE token_hash = $1 AND expires_at > NOW()`,
		tokenHash,
	)
	return database.MapPostgresError(err)
}

// Deactivate expires the session immediately by moving expires_at to now.
func (r *SessionRepository) Deactivate(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET expires_at = NOW() WHERE token_hash = $1 AND expires_at > NOW()`,
		tokenHash,
	)
	return database.MapPostgresError(err)
}

// DeactivateAllForUser expires every live session of the user.
func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET expires_at = NOW() WHERE user_id = $1 AND expires_at > NOW()`,
		userID,
	)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE user_id = $1 AND expires_at > NOW() ORDER BY last_activity DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}
