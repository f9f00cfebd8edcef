package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/catkeep/authcore/internal/database"
	"github.com/catkeep/authcore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = uuid.New().String()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	extra := entry.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("failed to marshal audit extra: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, user_id, operation, target_table, target_id, event_type, success, extra, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.pool.Exec(ctx, query,
		entry.ID, entry.UserID, entry.Operation,
		entry.TargetTable, entry.TargetID,
		entry.EventType, entry.Success, extraJSON, entry.CreatedAt,
	)
	return database.MapPostgresError(err)
}

func (r *AuditLogRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, user_id, operation, target_table, target_id, event_type, success, extra, created_at
		FROM audit_logs WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLog, 0)
	for rows.Next() {
		var entry models.AuditLog
		var extraJSON []byte

		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Operation,
			&entry.TargetTable, &entry.TargetID,
			&entry.EventType, &entry.Success, &extraJSON, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if len(extraJSON) > 0 {
			if err := json.Unmarshal(extraJSON, &entry.Extra); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit extra: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}
