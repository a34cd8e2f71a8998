package bookshelf

import "fmt"

// Action is a requested lifecycle operation on a book.
type Action string

const (
	ActionSubmit        Action = "submit"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionRequestDelete Action = "request_delete"
	ActionApproveDelete Action = "approve_delete"
	ActionRejectDelete  Action = "reject_delete"
	// ActionDelete is the direct terminal delete available to owners and
	// admins. It bypasses the request/approve step entirely.
	ActionDelete Action = "delete"
)

// Decision is the outcome of an allowed lifecycle action. When Purge is set the
// record and both of its assets are removed and To is empty.
type Decision struct {
	From  Status
	To    Status
	Purge bool
}

// Decide applies the moderation rules to a requested action. from is the
// empty Status for ActionSubmit. isOwner reports whether the actor submitted
// the book. Role failures wrap ErrForbidden, illegal source states wrap
// ErrInvalidTransition and unknown states wrap ErrInvalidStatus.
func Decide(from Status, action Action, role Role, isOwner bool) (Decision, error) {
	if action == ActionSubmit {
		return decideSubmit(from, role)
	}
	if !from.IsValid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidStatus, from)
	}

	switch action {
	case ActionApprove:
		return requireAdmin(from, action, role, StatusPending, StatusApproved)
	case ActionReject:
		return requireAdmin(from, action, role, StatusPending, StatusRejected)
	case ActionRejectDelete:
		return requireAdmin(from, action, role, StatusDeleteRequested, StatusApproved)
	case ActionApproveDelete:
		d, err := requireAdmin(from, action, role, StatusDeleteRequested, "")
		if err != nil {
			return Decision{}, err
		}
		d.Purge = true
		return d, nil
	case ActionRequestDelete:
		return decideRequestDelete(from, role, isOwner)
	case ActionDelete:
		return decideDelete(from, role, isOwner)
	default:
		return Decision{}, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
}

func decideSubmit(from Status, role Role) (Decision, error) {
	var to Status
	switch role {
	case RoleAdmin:
		to = StatusApproved
	case RoleWriter:
		to = StatusPending
	default:
		return Decision{}, fmt.Errorf("%w: only writers and admins can submit books (role: %s)", ErrForbidden, role)
	}
	if from != "" {
		return Decision{}, fmt.Errorf("%w: book already exists (status: %s)", ErrInvalidTransition, from)
	}
	return Decision{To: to}, nil
}

func requireAdmin(from Status, action Action, role Role, want, to Status) (Decision, error) {
	if role != RoleAdmin {
		return Decision{}, fmt.Errorf("%w: %s requires admin (role: %s)", ErrForbidden, action, role)
	}
	if from != want {
		return Decision{}, fmt.Errorf("%w: cannot %s a book that is %s", ErrInvalidTransition, action, from)
	}
	return Decision{From: from, To: to}, nil
}

func decideRequestDelete(from Status, role Role, isOwner bool) (Decision, error) {
	if role != RoleWriter {
		return Decision{}, fmt.Errorf("%w: only writers can request deletion (role: %s)", ErrForbidden, role)
	}
	if !isOwner {
		return Decision{}, fmt.Errorf("%w: deletion can only be requested for your own books", ErrForbidden)
	}
	switch from {
	case StatusApproved:
		return Decision{From: from, To: StatusDeleteRequested}, nil
	case StatusDeleteRequested:
		return Decision{}, fmt.Errorf("%w: delete already requested", ErrInvalidTransition)
	default:
		return Decision{}, fmt.Errorf("%w: cannot request deletion of a book that is %s", ErrInvalidTransition, from)
	}
}

func decideDelete(from Status, role Role, isOwner bool) (Decision, error) {
	allowed := role == RoleAdmin || (role == RoleWriter && isOwner)
	if !allowed {
		return Decision{}, fmt.Errorf("%w: you can only delete your own books", ErrForbidden)
	}
	if from == StatusDeleteRequested {
		return Decision{}, fmt.Errorf("%w: book is awaiting a delete decision", ErrInvalidTransition)
	}
	return Decision{From: from, Purge: true}, nil
}
