package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/repositories"
)

// AuditLogRepository stores audit entries in process memory.
type AuditLogRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditLogEntry
}

// NewAuditLogRepository constructs an empty in-memory audit log repository.
func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

// Append records an audit entry.
func (r *AuditLogRepository) Append(_ context.Context, entry domain.AuditLogEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return conflictError("auditLogs.append", "entry id is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.ID == entry.ID {
			return conflictError("auditLogs.append", "entry already exists: "+entry.ID)
		}
	}
	r.entries = append(r.entries, entry)
	return nil
}

// List returns entries matching the filter, newest first.
func (r *AuditLogRepository) List(_ context.Context, filter repositories.AuditLogFilter) ([]domain.AuditLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []domain.AuditLogEntry
	for _, entry := range r.entries {
		if target := strings.TrimSpace(filter.TargetRef); target != "" && entry.TargetRef != target {
			continue
		}
		if actor := strings.TrimSpace(filter.Actor); actor != "" && entry.Actor != actor {
			continue
		}
		if action := strings.TrimSpace(filter.Action); action != "" && entry.Action != action {
			continue
		}
		if filter.DateRange.From != nil && entry.CreatedAt.Before(*filter.DateRange.From) {
			continue
		}
		if filter.DateRange.To != nil && entry.CreatedAt.After(*filter.DateRange.To) {
			continue
		}
		matches = append(matches, entry)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)
