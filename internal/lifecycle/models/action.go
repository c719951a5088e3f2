package models

import (
	"strings"

	dErrors "lifeline/pkg/domain-errors"
)

// Action is an admin decision on a user or a request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDeny    Action = "deny"
)

// ParseAction accepts "approve" or "deny", case-insensitively.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionDeny:
		return ActionDeny, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "action must be approve or deny")
	}
}

// UserStatus is the verification outcome for this action.
func (a Action) UserStatus() UserStatus {
	if a == ActionApprove {
		return UserStatusVerified
	}
	return UserStatusDenied
}

// RequestStatus is the resolution for this action.
func (a Action) RequestStatus() RequestStatus {
	if a == ActionApprove {
		return RequestStatusApproved
	}
	return RequestStatusDenied
}
