// Package audit keeps an append-only log of prompt mutations. Logging is
// best-effort: a failed audit write never fails the operation it describes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/promptdeck/promptdeck/internal/identity"
	"github.com/promptdeck/promptdeck/internal/models"
)

type Service struct {
	db *pgxpool.Pool
}

// NewService returns a service writing to audit_logs. A nil pool disables
// auditing, which keeps handlers unconditional.
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type Entry struct {
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]any
}

// Record writes one audit entry, attributing it to the context user.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if s == nil || s.db == nil {
		return
	}

	var userID *uuid.UUID
	if u, ok := identity.UserFromContext(ctx); ok {
		userID = &u.ID
	}

	details, _ := json.Marshal(entry.Details)

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, details)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), userID, entry.Action, entry.ResourceType, entry.ResourceID, details,
	)
	if err != nil {
		slog.Warn("audit write failed", "action", entry.Action, "error", err)
	}
}

// Recent returns the latest audit entries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if s == nil || s.db == nil {
		return []models.AuditLog{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, action, resource_type, resource_id, details, created_at
		 FROM audit_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
