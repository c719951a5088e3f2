package handler

import (
	"strings"

	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
)

// RegisterRequest is the registration body. Status and request mirror
// fields are not accepted from callers.
type RegisterRequest struct {
	UserID           string  `json:"userId"`
	Name             string  `json:"name"`
	Phone            string  `json:"phone"`
	UserRole         string  `json:"userRole"`
	PinCode          string  `json:"pinCode"`
	BloodType        string  `json:"bloodType"`
	Age              int     `json:"age"`
	Weight           float64 `json:"weight"`
	Gender           string  `json:"gender"`
	Address          string  `json:"address"`
	LastDonationTime int64   `json:"lastDonationTime"`
	BloodReportLink  string  `json:"bloodReportLink"`
}

func (r *RegisterRequest) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Phone = strings.TrimSpace(r.Phone)
	r.UserRole = strings.TrimSpace(r.UserRole)
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	if r.UserRole != "" && !models.Role(r.UserRole).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "userRole must be Donor or Hospital")
	}
	if r.Age < 0 || r.Weight < 0 {
		return dErrors.New(dErrors.CodeValidation, "age and weight must not be negative")
	}
	return nil
}

func (r *RegisterRequest) Profile() models.UserProfile {
	return models.UserProfile{
		UserID:           r.UserID,
		Name:             r.Name,
		Phone:            r.Phone,
		UserRole:         models.Role(r.UserRole),
		PinCode:          r.PinCode,
		BloodType:        r.BloodType,
		Age:              r.Age,
		Weight:           r.Weight,
		Gender:           r.Gender,
		Address:          r.Address,
		LastDonationTime: r.LastDonationTime,
		BloodReportLink:  r.BloodReportLink,
	}
}

type LoginRequest struct {
	Phone string `json:"phone"`
}

func (r *LoginRequest) Validate() error {
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	return nil
}

// CreateBloodRequest is the body of a hospital's blood request. Role and
// requester checks are left to the service so a donor is refused with 403
// regardless of the other fields.
type CreateBloodRequest struct {
	RequesterID     string `json:"requesterId"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	UserRole        string `json:"userRole"`
	PinCode         string `json:"pinCode"`
	BloodTypeNeeded string `json:"bloodTypeNeeded"`
}

func (r *CreateBloodRequest) Validate() error {
	r.UserRole = strings.TrimSpace(r.UserRole)
	return nil
}

func (r *CreateBloodRequest) Draft() models.RequestDraft {
	return models.RequestDraft{
		RequesterID:     r.RequesterID,
		Name:            r.Name,
		Phone:           r.Phone,
		UserRole:        models.Role(r.UserRole),
		PinCode:         r.PinCode,
		BloodTypeNeeded: r.BloodTypeNeeded,
	}
}

// ActionRequest carries an admin decision.
type ActionRequest struct {
	Action string `json:"action"`
}

func (r *ActionRequest) Validate() error {
	action, err := models.ParseAction(r.Action)
	if err != nil {
		return err
	}
	r.Action = string(action)
	return nil
}
