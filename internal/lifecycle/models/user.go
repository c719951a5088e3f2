package models

import (
	"strings"
	"time"

	dErrors "lifeline/pkg/domain-errors"
)

// Role is the stored role of a user. Admin is not a role; it is the shared
// secret checked by the admin gate.
type Role string

const (
	RoleDonor    Role = "Donor"
	RoleHospital Role = "Hospital"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleDonor || r == RoleHospital
}

// UserStatus is the admin verification state.
type UserStatus string

const (
	UserStatusPendingVerification UserStatus = "PENDING_VERIFICATION"
	UserStatusVerified            UserStatus = "VERIFIED"
	UserStatusDenied              UserStatus = "DENIED"
)

// User is a registered donor or hospital.
//
// Invariants:
//   - UserID and Phone are unique across users
//   - Status starts at PENDING_VERIFICATION and changes only through admin
//     verification; it never transitions on its own
//   - IsRequestActive, BloodTypeNeeded and RequestPinCode mirror the hospital's
//     latest approved request and are written only by request resolution
type User struct {
	UserID           string     `json:"userId"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	UserRole         Role       `json:"userRole"`
	PinCode          string     `json:"pinCode"`
	BloodType        string     `json:"bloodType,omitempty"`
	Age              int        `json:"age,omitempty"`
	Weight           float64    `json:"weight,omitempty"`
	Gender           string     `json:"gender,omitempty"`
	Address          string     `json:"address,omitempty"`
	Status           UserStatus `json:"status"`
	LastDonationTime int64      `json:"lastDonationTime,omitempty"`
	BloodReportLink  string     `json:"bloodReportLink,omitempty"`

	IsRequestActive bool   `json:"isRequestActive"`
	BloodTypeNeeded string `json:"bloodTypeNeeded,omitempty"`
	RequestPinCode  string `json:"requestPinCode,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Mirror is the hospital-side copy of an approved request.
type Mirror struct {
	Active          bool
	BloodTypeNeeded string
	RequestPinCode  string
}

// Mirror returns the user's current request mirror.
func (u *User) Mirror() Mirror {
	return Mirror{
		Active:          u.IsRequestActive,
		BloodTypeNeeded: u.BloodTypeNeeded,
		RequestPinCode:  u.RequestPinCode,
	}
}

// ApplyMirror overwrites the mirror fields.
func (u *User) ApplyMirror(m Mirror, now time.Time) {
	u.IsRequestActive = m.Active
	u.BloodTypeNeeded = m.BloodTypeNeeded
	u.RequestPinCode = m.RequestPinCode
	u.UpdatedAt = now
}

// IsDiscoverableDonor reports whether the user may appear in donor searches.
func (u *User) IsDiscoverableDonor() bool {
	return u.UserRole == RoleDonor && u.Status == UserStatusVerified
}

// ApplyVerification sets the verification outcome. Repeating the same outcome
// is a no-op and reports changed=false.
func (u *User) ApplyVerification(status UserStatus, now time.Time) (changed bool) {
	if u.Status == status {
		return false
	}
	u.Status = status
	u.UpdatedAt = now
	return true
}

// NewUser builds a freshly registered user. Caller-supplied status and mirror
// fields are discarded.
func NewUser(p UserProfile, userID string, now time.Time) (*User, error) {
	phone := strings.TrimSpace(p.Phone)
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "phone is required")
	}
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user id is required")
	}
	if p.UserRole != "" && !p.UserRole.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "userRole must be Donor or Hospital")
	}
	return &User{
		UserID:           userID,
		Name:             strings.TrimSpace(p.Name),
		Phone:            phone,
		UserRole:         p.UserRole,
		PinCode:          strings.TrimSpace(p.PinCode),
		BloodType:        strings.TrimSpace(p.BloodType),
		Age:              p.Age,
		Weight:           p.Weight,
		Gender:           p.Gender,
		Address:          p.Address,
		Status:           UserStatusPendingVerification,
		LastDonationTime: p.LastDonationTime,
		BloodReportLink:  p.BloodReportLink,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// UserProfile is the caller-controlled part of a registration.
type UserProfile struct {
	UserID           string
	Name             string
	Phone            string
	UserRole         Role
	PinCode          string
	BloodType        string
	Age              int
	Weight           float64
	Gender           string
	Address          string
	LastDonationTime int64
	BloodReportLink  string
}

// DonorFilter selects discoverable donors.
type DonorFilter struct {
	PinCode   string
	BloodType string // empty matches any blood type
}

// Matches reports whether u satisfies the filter, including the verified
// donor restriction.
func (f DonorFilter) Matches(u *User) bool {
	if !u.IsDiscoverableDonor() || u.PinCode != f.PinCode {
		return false
	}
	return f.BloodType == "" || u.BloodType == f.BloodType
}
