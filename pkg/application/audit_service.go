package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/reneee98/layers/pkg/domain"
)

// AuditService appends billing actions to the audit trail and checks it.
type AuditService struct {
	repo domain.AuditRepository
}

// Compile-time check that AuditService implements AuditLogger
var _ domain.AuditLogger = (*AuditService)(nil)

func NewAuditService(repo domain.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an event. The repository chains it to the previous event.
func (s *AuditService) Log(action string, actor string, metadata map[string]interface{}) error {
	event := domain.Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Actor:     actor,
		Metadata:  metadata,
	}
	return s.repo.RecordEvent(context.Background(), event)
}

// GetTimeline returns the trail oldest first.
func (s *AuditService) GetTimeline(ctx context.Context) ([]domain.Event, error) {
	return s.repo.LoadEvents(ctx)
}

// VerifyIntegrity re-hashes the trail and reports every broken link.
func (s *AuditService) VerifyIntegrity(ctx context.Context) ([]string, error) {
	events, err := s.repo.LoadEvents(ctx)
	if err != nil {
		return nil, err
	}
	return domain.VerifyChain(events), nil
}
