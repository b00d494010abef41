// Package document implements the append-only document ledger and its
// coupling to object storage. Attaching is independent of the owning
// application's status; the completion guard elsewhere only checks for
// existence of a result document.
package document

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"seva-portal/internal/common/blob"
	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/common/metrics"
	"seva-portal/internal/models"
	"seva-portal/internal/store"
)

type Service struct {
	docs   *store.DocumentStore
	apps   *store.ApplicationStore
	blobs  blob.Store
	logger logger.Logger
}

func NewService(docs *store.DocumentStore, apps *store.ApplicationStore, blobs blob.Store, log logger.Logger) *Service {
	return &Service{
		docs:   docs,
		apps:   apps,
		blobs:  blobs,
		logger: log.WithFields(logger.Fields{"service": "document"}),
	}
}

// Attach appends a ledger entry for an already-uploaded blob. Pure
// append: no uniqueness constraint on (application, type), history is
// preserved.
func (s *Service) Attach(ctx context.Context, applicationID, documentURL, documentType string) (*models.ApplicationDocument, error) {
	if strings.TrimSpace(documentURL) == "" {
		return nil, apperrors.NewValidationError("document_url is required")
	}
	if strings.TrimSpace(documentType) == "" {
		documentType = models.DocTypeApplicant
	}

	if _, err := s.apps.GetByID(ctx, applicationID); err != nil {
		return nil, err
	}

	doc := &models.ApplicationDocument{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		DocumentURL:   documentURL,
		DocumentType:  documentType,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		return nil, err
	}

	metrics.DocumentUploads.WithLabelValues(documentType).Inc()
	s.logger.Info("document attached", logger.Fields{
		"applicationId": applicationID,
		"documentType":  documentType,
	})
	return doc, nil
}

// UploadAndAttach pushes a file into object storage and appends a
// ledger entry for it. If the attach fails after the upload succeeded
// the blob is orphaned, which is acceptable; no application state has
// changed.
func (s *Service) UploadAndAttach(ctx context.Context, applicationID, filename, contentType string, body io.Reader, documentType string) (*models.ApplicationDocument, error) {
	if _, err := s.apps.GetByID(ctx, applicationID); err != nil {
		return nil, err
	}

	key := objectKey(applicationID, filename)
	url, err := s.blobs.Upload(ctx, key, contentType, body)
	if err != nil {
		return nil, apperrors.NewBlobUnavailableError(err)
	}

	return s.Attach(ctx, applicationID, url, documentType)
}

// List returns the application's documents, newest first. When
// includeResult is false, result documents are filtered out at read
// time — the citizen view before release.
func (s *Service) List(ctx context.Context, applicationID string, includeResult bool) ([]*models.ApplicationDocument, error) {
	excludeType := ""
	if !includeResult {
		excludeType = models.DocTypeResult
	}
	return s.docs.ListByApplication(ctx, applicationID, excludeType)
}

// LatestResultURL returns the most recent result document URL, or ""
// when none exists.
func (s *Service) LatestResultURL(ctx context.Context, applicationID string) (string, error) {
	docs, err := s.docs.ListByApplication(ctx, applicationID, "")
	if err != nil {
		return "", err
	}
	for _, doc := range docs {
		if doc.DocumentType == models.DocTypeResult {
			return doc.DocumentURL, nil
		}
	}
	return "", nil
}

// objectKey mirrors the original upload naming: application id plus a
// random fragment, keeping the source extension.
func objectKey(applicationID, filename string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("%s-%s%s", applicationID, uuid.New().String()[:8], ext)
}
