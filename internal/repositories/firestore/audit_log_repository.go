package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/noirthread/storefront-api/internal/domain"
	pfirestore "github.com/noirthread/storefront-api/internal/platform/firestore"
	"github.com/noirthread/storefront-api/internal/repositories"
)

const auditLogsCollection = "audit_logs"

type auditLogDocument struct {
	ID        string         `firestore:"id"`
	Actor     string         `firestore:"actor"`
	ActorType string         `firestore:"actorType,omitempty"`
	Action    string         `firestore:"action"`
	TargetRef string         `firestore:"targetRef,omitempty"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
	RequestID string         `firestore:"requestId,omitempty"`
	Severity  string         `firestore:"severity,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

// AuditLogRepository stores immutable audit trail entries in Firestore.
type AuditLogRepository struct {
	entries *pfirestore.Collection[auditLogDocument]
}

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	return &AuditLogRepository{
		entries: pfirestore.NewCollection[auditLogDocument](provider, auditLogsCollection),
	}, nil
}

// Append writes a single audit entry. Entries are never updated afterwards.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if r == nil || r.entries == nil {
		return errors.New("audit log repository not initialised")
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		return errors.New("audit log repository: entry id is required")
	}
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return r.entries.Create(ctx, id, auditLogDocument{
		ID:        id,
		Actor:     strings.TrimSpace(entry.Actor),
		ActorType: strings.TrimSpace(entry.ActorType),
		Action:    strings.TrimSpace(entry.Action),
		TargetRef: strings.TrimSpace(entry.TargetRef),
		Metadata:  cloneAnyMap(entry.Metadata),
		RequestID: strings.TrimSpace(entry.RequestID),
		Severity:  strings.TrimSpace(entry.Severity),
		CreatedAt: createdAt,
	})
}

// List returns audit entries matching the filter, newest first.
func (r *AuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) ([]domain.AuditLogEntry, error) {
	if r == nil || r.entries == nil {
		return nil, errors.New("audit log repository not initialised")
	}

	docs, err := r.entries.Query(ctx, func(q firestore.Query) firestore.Query {
		if target := strings.TrimSpace(filter.TargetRef); target != "" {
			q = q.Where("targetRef", "==", target)
		}
		if actor := strings.TrimSpace(filter.Actor); actor != "" {
			q = q.Where("actor", "==", actor)
		}
		if action := strings.TrimSpace(filter.Action); action != "" {
			q = q.Where("action", "==", action)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.AuditLogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, domain.AuditLogEntry{
			ID:        doc.ID,
			Actor:     doc.Actor,
			ActorType: doc.ActorType,
			Action:    doc.Action,
			TargetRef: doc.TargetRef,
			Metadata:  cloneAnyMap(doc.Metadata),
			RequestID: doc.RequestID,
			Severity:  doc.Severity,
			CreatedAt: doc.CreatedAt,
		})
	}
	return entries, nil
}

var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)
