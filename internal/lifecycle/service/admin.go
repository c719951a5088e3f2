package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/requestcontext"
)

// ListPendingUsers returns users still awaiting verification.
func (s *Service) ListPendingUsers(ctx context.Context) (_ []*models.User, err error) {
	ctx, finish := s.start(ctx, "list_pending_users")
	defer finish(&err)

	users, err := s.users.ListByStatus(ctx, models.UserStatusPendingVerification)
	if err != nil {
		return nil, translateStoreErr(err, "", "failed to list pending users")
	}
	return users, nil
}

// SetUserStatus records the admin's verification decision. Repeating the
// decision already stored returns the user unchanged and publishes nothing.
func (s *Service) SetUserStatus(ctx context.Context, userID, rawAction string) (_ *models.User, err error) {
	ctx, finish := s.start(ctx, "set_user_status",
		attribute.String("user_id", userID),
		attribute.String("action", rawAction),
	)
	defer finish(&err)

	action, err := models.ParseAction(rawAction)
	if err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "userId is required")
	}

	status := action.UserStatus()
	now := requestcontext.Now(ctx)
	user, err := s.users.Execute(ctx, userID,
		func(u *models.User) error {
			if u.Status == status {
				return errUnchanged
			}
			return nil
		},
		func(u *models.User) {
			u.ApplyVerification(status, now)
		},
	)
	if errors.Is(err, errUnchanged) {
		user, err = s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, translateStoreErr(err, "user not found", "failed to load user")
		}
		return user, nil
	}
	if err != nil {
		return nil, translateStoreErr(err, "user not found", "failed to update user status")
	}

	s.logger.InfoContext(ctx, "user verification recorded",
		"user_id", user.UserID,
		"status", user.Status,
		"actor", requestcontext.Actor(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.UsersVerified.WithLabelValues(string(user.Status)).Inc()
	}
	s.publish(ctx, models.EventUserVerified, user.UserID, models.UserVerified{
		UserID: user.UserID,
		Status: user.Status,
	})
	return user, nil
}

// ResolveRequest approves or denies a blood request and then updates the
// hospital's mirror fields.
//
// The request write is committed first and is the result the caller sees.
// The mirror write is a separate step: a missing hospital is logged and
// counted, a failed write is logged, counted and handed to the mirror
// repairer. Neither undoes the resolution.
//
// Resolving again with the same action returns the stored request without
// side effects. The opposite action on a resolved request is a conflict.
func (s *Service) ResolveRequest(ctx context.Context, requestID, rawAction string) (_ *models.Request, err error) {
	ctx, finish := s.start(ctx, "resolve_request",
		attribute.String("blood_request_id", requestID),
		attribute.String("action", rawAction),
	)
	defer finish(&err)

	action, err := models.ParseAction(rawAction)
	if err != nil {
		return nil, err
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requestId is required")
	}

	target := action.RequestStatus()
	now := requestcontext.Now(ctx)
	req, err := s.requests.Execute(ctx, requestID,
		func(r *models.Request) error {
			if r.Status == target {
				return errUnchanged
			}
			if r.Status.IsTerminal() {
				return dErrors.New(dErrors.CodeConflict, "request is already "+string(r.Status))
			}
			return nil
		},
		func(r *models.Request) {
			_, _ = r.Resolve(action, now)
		},
	)
	if errors.Is(err, errUnchanged) {
		req, err = s.requests.FindByID(ctx, requestID)
		if err != nil {
			return nil, translateStoreErr(err, "request not found", "failed to load request")
		}
		return req, nil
	}
	if err != nil {
		return nil, translateStoreErr(err, "request not found", "failed to resolve request")
	}

	s.logger.InfoContext(ctx, "blood request resolved",
		"blood_request_id", req.RequestID,
		"requester_id", req.RequesterID,
		"status", req.Status,
		"actor", requestcontext.Actor(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.RequestsResolved.WithLabelValues(string(action)).Inc()
	}

	s.syncMirror(ctx, mirrorJobFor(req, action))

	if action == models.ActionApprove {
		donorIDs, err := s.matchingDonorIDs(ctx, req)
		if err != nil {
			s.logger.WarnContext(ctx, "matching donor lookup failed",
				"blood_request_id", req.RequestID,
				"error", err,
			)
		}
		s.publish(ctx, models.EventRequestApproved, req.RequestID, models.RequestApproved{
			RequestID:       req.RequestID,
			PinCode:         req.PinCode,
			BloodTypeNeeded: req.BloodTypeNeeded,
			DonorIDs:        donorIDs,
		})
	} else {
		s.publish(ctx, models.EventRequestDenied, req.RequestID, models.RequestDenied{
			RequestID: req.RequestID,
		})
	}
	return req, nil
}
