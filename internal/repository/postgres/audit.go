package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/habitus/internal/models"
)

type AuditRepo struct {
	DB DBTX
}

const createAuditEvent = `-- name: CreateAuditEvent
INSERT INTO audit_events (id, action, user_id, ip, user_agent, meta, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (r *AuditRepo) Create(ctx context.Context, e models.AuditEvent) error {
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	_, err := r.DB.Exec(ctx, createAuditEvent, e.ID, e.Action, e.UserID, e.IP, e.UserAgent, meta, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listAuditEvents = `-- name: ListAuditEvents
SELECT id, action, user_id, ip, user_agent, meta, created_at
FROM audit_events
ORDER BY created_at DESC, id DESC
LIMIT $1
`

func (r *AuditRepo) List(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	rows, _ := r.DB.Query(ctx, listAuditEvents, limit)
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AuditEvent, error) {
		var e models.AuditEvent
		err := row.Scan(&e.ID, &e.Action, &e.UserID, &e.IP, &e.UserAgent, &e.Meta, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return events, nil
}
