package models

// ApplicationStatus is the workflow state of an application.
type ApplicationStatus string

const (
	StatusSubmitted   ApplicationStatus = "submitted"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusApproved    ApplicationStatus = "approved"
	StatusRejected    ApplicationStatus = "rejected"
	StatusCompleted   ApplicationStatus = "completed"
)

// legalTransitions is the guarded transition graph. Accept moves
// submitted -> under_review, the operator closes out to completed or
// rejected, and relist returns any assigned or terminal state to
// submitted. Admin override bypasses this table entirely.
var legalTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusSubmitted:   {StatusUnderReview},
	StatusUnderReview: {StatusCompleted, StatusRejected, StatusSubmitted},
	StatusCompleted:   {StatusSubmitted},
	StatusRejected:    {StatusSubmitted},
	StatusApproved:    {StatusSubmitted},
}

// Valid reports whether s is a known status value.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether s is an end state of the workflow.
// "approved" is a deprecated alias of "completed" kept for records
// written through the admin override; both count as positive terminals.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusApproved || s == StatusRejected
}

// PositiveTerminal reports whether s entitles the public status page to
// show a released result document.
func (s ApplicationStatus) PositiveTerminal() bool {
	return s == StatusCompleted || s == StatusApproved
}

// CanTransition reports whether from -> to is a legal guarded transition.
func CanTransition(from, to ApplicationStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
