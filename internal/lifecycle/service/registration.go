package service

import (
	"context"
	"errors"
	"strings"

	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
)

// Register creates a user awaiting verification. Status and request mirror
// fields are always reset, whatever the caller sent.
func (s *Service) Register(ctx context.Context, profile models.UserProfile) (_ *models.User, err error) {
	ctx, finish := s.start(ctx, "register")
	defer finish(&err)

	profile.Phone = strings.TrimSpace(profile.Phone)
	profile.UserID = strings.TrimSpace(profile.UserID)
	if profile.Phone == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	if profile.UserRole != "" && !profile.UserRole.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "userRole must be Donor or Hospital")
	}

	if _, err := s.users.FindByPhone(ctx, profile.Phone); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicatePhone, "phone is already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, translateStoreErr(err, "", "failed to look up phone")
	}

	userID := profile.UserID
	if userID == "" {
		userID = s.newID()
	} else if _, err := s.users.FindByID(ctx, userID); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "userId is already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, translateStoreErr(err, "", "failed to look up user")
	}

	user, err := models.NewUser(profile, userID, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	// The lookups above are advisory; the store's unique constraints are
	// authoritative when two registrations race.
	if err := s.users.CreateIfPhoneAvailable(ctx, user); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrDuplicateID):
			return nil, dErrors.New(dErrors.CodeConflict, "userId is already registered")
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, dErrors.New(dErrors.CodeDuplicatePhone, "phone is already registered")
		}
		return nil, translateStoreErr(err, "", "failed to create user")
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.UserID,
		"role", user.UserRole,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.UsersRegistered.Inc()
	}
	s.publish(ctx, models.EventUserRegistered, user.UserID, user)
	return user, nil
}

// Login returns the user registered under phone. Possession of the phone
// number is the only credential.
func (s *Service) Login(ctx context.Context, phone string) (_ *models.User, err error) {
	ctx, finish := s.start(ctx, "login")
	defer finish(&err)

	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, translateStoreErr(err, "user not found", "failed to load user")
	}
	return user, nil
}
