package audit

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/models"
	"github.com/nkiryanov/habitus/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Audit trail of security relevant events
// Recording is best effort: failures are logged and never returned to the caller
type Service struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{storage: storage, logger: l}
}

func (s *Service) Record(ctx context.Context, event models.AuditEvent) {
	event.Action = strings.TrimSpace(event.Action)
	if event.Action == "" {
		return
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if event.ID == "" {
		id, err := ulid.New(ulid.Timestamp(event.CreatedAt), rand.Reader)
		if err != nil {
			s.logger.Error("audit event id generation failed", "action", event.Action, "error", err)
			return
		}
		event.ID = id.String()
	}

	if err := s.storage.Audit().Create(ctx, event); err != nil {
		s.logger.Error("audit event insert failed", "action", event.Action, "error", err)
	}
}

// Latest events first
func (s *Service) List(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	events, err := s.storage.Audit().List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("can't list audit events. Err: %w", err)
	}
	return events, nil
}
