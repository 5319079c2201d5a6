package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Audit actions.
const (
	AuditCreate = "CREATE"
	AuditUpdate = "UPDATE"
	AuditLogin  = "LOGIN"
)

// Audited entity types.
const (
	EntityUser         = "user"
	EntityCustomer     = "customer"
	EntityPricingModel = "pricing_model"
	EntityPricingRun   = "pricing_run"
	EntityImport       = "import"
)

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	ID         int64           `json:"id"`
	UserEmail  string          `json:"userEmail"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	IPAddress  string          `json:"ipAddress"`
	UserAgent  string          `json:"userAgent"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// RecordAudit appends an entry to the audit trail. changes may be nil.
func (s *Store) RecordAudit(ctx context.Context, e AuditEntry, changes any) error {
	var raw sql.NullString
	if changes != nil {
		b, err := json.Marshal(changes)
		if err != nil {
			return fmt.Errorf("marshal audit changes: %w", err)
		}
		raw = nullString(string(b))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			user_email, action, entity_type, entity_id,
			changes_json, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.UserEmail, e.Action, e.EntityType, e.EntityID, raw, e.IPAddress, e.UserAgent, s.timestamp())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// EntityHistory returns the audit trail of one entity, newest first.
func (s *Store) EntityHistory(ctx context.Context, entityType, entityID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_email, action, entity_type, entity_id, changes_json, ip_address, user_agent, created_at
		FROM audit_log
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC, id DESC
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		var (
			e         AuditEntry
			changes   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserEmail, &e.Action, &e.EntityType, &e.EntityID, &changes, &e.IPAddress, &e.UserAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		if changes.Valid {
			e.Changes = json.RawMessage(changes.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}

	return entries, nil
}
