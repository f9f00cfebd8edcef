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

const trustedDeviceColumns = `id, user_id, fingerprint_hash, device_name, is_trusted, trust_expires_at, revoked_at, first_seen, last_seen`

type TrustedDeviceRepository struct {
	pool *pgxpool.Pool
}

func NewTrustedDeviceRepository(db *database.DB) *TrustedDeviceRepository {
	return &TrustedDeviceRepository{pool: db.Pool}
}

func scanTrustedDeviceRow(scanner rowScanner) (*models.TrustedDevice, error) {
	var device models.TrustedDevice

	err := scanner.Scan(
		&device.ID, &device.UserID, &device.FingerprintHash, &device.DeviceName,
		&device.IsTrusted, &device.TrustExpiresAt, &device.RevokedAt,
		&device.FirstSeen, &device.LastSeen,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &device, nil
}

// Upsert registers or refreshes trust for a (user, fingerprint) pair. A
// previously revoked row is re-trusted with a fresh expiry.
func (r *TrustedDeviceRepository) Upsert(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error) {
	device.ID = uuid.New().String()
	now := time.Now()

	query := `
		INSERT INTO trusted_devices (id, user_id, fingerprint_hash, device_name, is_trusted, trust_expires_at, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $6)
		ON CONFLICT (user_id, fingerprint_hash) DO UPDATE SET
			device_name = EXCLUDED.device_name,
			is_trusted = TRUE,
			trust_expires_at = EXCLUDED.trust_expires_at,
			revoked_at = NULL,
			last_seen = EXCLUDED.last_seen
		RETURNING ` + trustedDeviceColumns

	return scanTrustedDeviceRow(r.pool.QueryRow(ctx, query,
		device.ID, device.UserID, device.FingerprintHash, device.DeviceName,
		device.TrustExpiresAt, now,
	))
}

// FindTrusted returns the device row only if it is currently trusted: marked
// trusted, not revoked, and not past its trust expiry.
func (r *TrustedDeviceRepository) FindTrusted(ctx context.Context, userID, fingerprintHash string) (*models.TrustedDevice, error) {
	query := `
		SELECT ` + trustedDeviceColumns + `
		FROM trusted_devices
		WHERE user_id = $1 AND fingerprint_hash = $2
			AND is_trusted AND revoked_at IS NULL AND trust_expires_at > NOW()
	`

	return scanTrustedDeviceRow(r.pool.QueryRow(ctx, query, userID, fingerprintHash))
}

// TouchLastSeen is best-effort bookkeeping on successful trusted logins.
func (r *TrustedDeviceRepository) TouchLastSeen(ctx context.Context, deviceID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE trusted_devices SET last_seen = NOW() WHERE id = $1`,
		deviceID,
	)
	return database.MapPostgresError(err)
}

func (r *TrustedDeviceRepository) RevokeByID(ctx context.Context, userID, deviceID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE trusted_devices SET is_trusted = FALSE, revoked_at = NOW() WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`,
		deviceID, userID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RevokeAll drops trust for every device of the user, e.g. when MFA is reset.
func (r *TrustedDeviceRepository) RevokeAll(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE trusted_devices SET is_trusted = FALSE, revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`,
		userID,
	)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *TrustedDeviceRepository) ListByUser(ctx context.Context, userID string) ([]*models.TrustedDevice, error) {
	query := `SELECT ` + trustedDeviceColumns + ` FROM trusted_devices WHERE user_id = $1 ORDER BY last_seen DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trusted devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*models.TrustedDevice, 0)
	for rows.Next() {
		device, err := scanTrustedDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trusted device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return devices, nil
}
