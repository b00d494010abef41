package models

import "time"

// Application is a citizen's request for a government service, tracked
// from submission through operator processing to completion.
type Application struct {
	ID            string            `json:"id"`
	ApplicationNo string            `json:"applicationNo"`
	UserID        *string           `json:"userId,omitempty"`
	ServiceID     *string           `json:"serviceId,omitempty"`
	ApplicantName string            `json:"applicantName"`
	Mobile        string            `json:"mobile"`
	ServiceName   string            `json:"serviceName"`
	Status        ApplicationStatus `json:"status"`
	Price         *float64          `json:"price,omitempty"`
	OperatorPrice *float64          `json:"operatorPrice,omitempty"`
	OperatorID    *string           `json:"operatorId,omitempty"`
	AcceptedAt    *time.Time        `json:"acceptedAt,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Assigned reports whether an operator currently owns the application.
func (a *Application) Assigned() bool {
	return a.OperatorID != nil
}

// StatusSummary is the public projection returned by the status lookup.
// OperatorPrice is deliberately absent.
type StatusSummary struct {
	ApplicationNo string            `json:"applicationNo"`
	ApplicantName string            `json:"applicantName"`
	ServiceName   string            `json:"serviceName"`
	Status        ApplicationStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	DocumentURL   string            `json:"documentUrl,omitempty"`
}
