package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noirthread/storefront-api/internal/repositories"
)

// AuditLogServiceDeps bundles collaborators for the audit trail service.
type AuditLogServiceDeps struct {
	Repository repositories.AuditLogRepository
	IDs        IDGenerator
	Logger     *zap.Logger
	Clock      func() time.Time
}

type auditLogService struct {
	repo   repositories.AuditLogRepository
	ids    IDGenerator
	logger *zap.Logger
	clock  func() time.Time
}

// NewAuditLogService constructs the owner-action audit trail.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.Repository == nil {
		return nil, errors.New("audit log service: repository is required")
	}
	if deps.IDs == nil {
		return nil, errors.New("audit log service: id generator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &auditLogService{
		repo:   deps.Repository,
		ids:    deps.IDs,
		logger: logger,
		clock:  func() time.Time { return clock().UTC() },
	}, nil
}

// Record appends an audit entry. Persistence failures are logged, never
// surfaced: the admin action that triggered the entry has already succeeded.
func (s *auditLogService) Record(ctx context.Context, record AuditRecord) {
	entry := AuditLogEntry{
		ID:        s.ids.NewID(AuditIDPrefix),
		Actor:     strings.TrimSpace(record.Actor),
		ActorType: strings.TrimSpace(record.ActorType),
		Action:    strings.TrimSpace(record.Action),
		TargetRef: strings.TrimSpace(record.TargetRef),
		Metadata:  record.Metadata,
		RequestID: strings.TrimSpace(record.RequestID),
		Severity:  strings.TrimSpace(record.Severity),
		CreatedAt: s.clock(),
	}
	if entry.ActorType == "" {
		entry.ActorType = "owner"
	}
	if entry.Severity == "" {
		entry.Severity = "info"
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Warn("audit entry not persisted",
			zap.String("action", entry.Action),
			zap.String("target_ref", entry.TargetRef),
			zap.Error(err),
		)
	}
}

// List returns audit entries matching the filter, newest first.
func (s *auditLogService) List(ctx context.Context, filter repositories.AuditLogFilter) ([]AuditLogEntry, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return entries, nil
}
