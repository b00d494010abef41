package models

import "time"

// Operator is a staff account that claims and processes applications.
// New operators are created inactive and become active only through
// admin approval.
type Operator struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Mobile    string    `json:"mobile,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}
