package models

import "time"

// Document type tags. Free-form in storage; these two are the ones the
// system itself distinguishes.
const (
	DocTypeApplicant = "applicant_doc"
	DocTypeResult    = "result_doc"
)

// ApplicationDocument is one entry in the append-only document ledger.
// Rows are never mutated or deleted by the core.
type ApplicationDocument struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	DocumentURL   string    `json:"documentUrl"`
	DocumentType  string    `json:"documentType"`
	CreatedAt     time.Time `json:"createdAt"`
}
