package models

import (
	"strings"
	"time"

	dErrors "lifeline/pkg/domain-errors"
)

// RequestStatus is the admin resolution state of a blood request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusDenied   RequestStatus = "DENIED"
)

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusDenied
}

// Request is a hospital's call for blood.
//
// Name, Phone, UserRole, PinCode and BloodTypeNeeded are a snapshot taken at
// creation and are not re-synced when the hospital user changes. Status moves
// PENDING -> APPROVED or PENDING -> DENIED exactly once.
type Request struct {
	RequestID       string        `json:"requestId"`
	RequesterID     string        `json:"requesterId"`
	Name            string        `json:"name"`
	Phone           string        `json:"phone"`
	UserRole        Role          `json:"userRole"`
	PinCode         string        `json:"pinCode"`
	BloodTypeNeeded string        `json:"bloodTypeNeeded"`
	Status          RequestStatus `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// RequestDraft is the caller-supplied part of a new request.
type RequestDraft struct {
	RequesterID     string
	Name            string
	Phone           string
	UserRole        Role
	PinCode         string
	BloodTypeNeeded string
}

// NewRequest builds a pending request. Only hospitals may file requests.
func NewRequest(d RequestDraft, requestID string, now time.Time) (*Request, error) {
	if d.UserRole != RoleHospital {
		return nil, dErrors.New(dErrors.CodeForbidden, "only Hospital accounts may create blood requests")
	}
	requesterID := strings.TrimSpace(d.RequesterID)
	if requesterID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requesterId is required")
	}
	return &Request{
		RequestID:       requestID,
		RequesterID:     requesterID,
		Name:            strings.TrimSpace(d.Name),
		Phone:           strings.TrimSpace(d.Phone),
		UserRole:        d.UserRole,
		PinCode:         strings.TrimSpace(d.PinCode),
		BloodTypeNeeded: strings.TrimSpace(d.BloodTypeNeeded),
		Status:          RequestStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Resolve moves a pending request to the status implied by action.
// Re-applying the action that already resolved the request is a no-op
// (changed=false); the opposite action on a resolved request is rejected.
func (r *Request) Resolve(action Action, now time.Time) (changed bool, err error) {
	target := action.RequestStatus()
	if r.Status == target {
		return false, nil
	}
	if r.Status.IsTerminal() {
		return false, dErrors.New(dErrors.CodeConflict, "request is already "+string(r.Status))
	}
	r.Status = target
	r.UpdatedAt = now
	return true, nil
}

// ApprovedMirror is the hospital mirror produced by approving r.
func (r *Request) ApprovedMirror() Mirror {
	return Mirror{
		Active:          true,
		BloodTypeNeeded: r.BloodTypeNeeded,
		RequestPinCode:  r.PinCode,
	}
}

// DonorFilter selects donors who can answer r.
func (r *Request) DonorFilter() DonorFilter {
	return DonorFilter{PinCode: r.PinCode, BloodType: r.BloodTypeNeeded}
}
