package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// AuditStore writes the audit trail for admin overrides, relists and
// creations. Audit inserts are non-critical: callers log failures and
// never roll back the audited mutation.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Record appends an audit entry. The returned error is informational
// only.
func (s *AuditStore) Record(ctx context.Context, eventType, resourceType, resourceID string, details map[string]interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		eventType, resourceType, resourceID, detailsJSON, time.Now().UTC())
	return err
}
