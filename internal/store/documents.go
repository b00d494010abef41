package store

import (
	"context"
	"database/sql"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/models"
)

// DocumentStore persists the append-only document ledger. Rows are only
// ever inserted.
type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Insert appends a document entry.
func (s *DocumentStore) Insert(ctx context.Context, doc *models.ApplicationDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO application_documents (id, application_id, document_url, document_type, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.ApplicationID, doc.DocumentURL, doc.DocumentType, doc.CreatedAt)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

// ListByApplication returns an application's documents in
// reverse-chronological order. excludeType, when non-empty, filters out
// that document type at read time (e.g. withholding result documents
// from the citizen view before release).
func (s *DocumentStore) ListByApplication(ctx context.Context, applicationID, excludeType string) ([]*models.ApplicationDocument, error) {
	query := `
		SELECT id, application_id, document_url, document_type, created_at
		FROM application_documents
		WHERE application_id = $1`
	args := []interface{}{applicationID}
	if excludeType != "" {
		query += ` AND document_type <> $2`
		args = append(args, excludeType)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	var docs []*models.ApplicationDocument
	for rows.Next() {
		var doc models.ApplicationDocument
		if err := rows.Scan(&doc.ID, &doc.ApplicationID, &doc.DocumentURL, &doc.DocumentType, &doc.CreatedAt); err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return docs, nil
}

// CountByType returns how many documents of a type the application has.
// The completion guard only needs existence.
func (s *DocumentStore) CountByType(ctx context.Context, applicationID, documentType string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM application_documents
		WHERE application_id = $1 AND document_type = $2`,
		applicationID, documentType).Scan(&n)
	if err != nil {
		return 0, apperrors.NewStoreUnavailableError(err)
	}
	return n, nil
}
