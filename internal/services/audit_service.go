package services

import (
	"context"
	"log/slog"

	"github.com/catkeep/authcore/internal/models"
)

// AuditLogRepository defines the persistence interface for audit entries.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// AuditService records security events with a dual-write pattern: immediate
// slog output plus best-effort database persistence. A failed DB write is
// logged and swallowed so auditing never breaks the operation being audited.
type AuditService struct {
	repo   AuditLogRepository
	logger *slog.Logger
}

func NewAuditService(repo AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

func (s *AuditService) Record(ctx context.Context, entry *models.AuditLog) {
	attrs := []slog.Attr{
		slog.String("event_type", entry.EventType),
		slog.String("operation", entry.Operation),
		slog.Bool("success", entry.Success),
	}
	if entry.UserID != nil {
		attrs = append(attrs, slog.String("user_id", *entry.UserID))
	}
	if entry.TargetID != nil {
		attrs = append(attrs, slog.String("target_id", *entry.TargetID))
	}
	for k, v := range entry.Extra {
		attrs = append(attrs, slog.String(k, v))
	}

	level := slog.LevelInfo
	if !entry.Success {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "audit", attrs...)

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("event_type", entry.EventType),
			slog.Any("error", err),
		)
	}
}
