package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
)

// CreateRequest files a pending blood request for a hospital. A registered
// requester must hold the Hospital role. The hospital's user record is not
// modified; its mirror fields change only on approval or denial.
func (s *Service) CreateRequest(ctx context.Context, draft models.RequestDraft) (_ *models.Request, err error) {
	ctx, finish := s.start(ctx, "create_request", attribute.String("requester_id", draft.RequesterID))
	defer finish(&err)

	if draft.UserRole != models.RoleHospital {
		return nil, dErrors.New(dErrors.CodeForbidden, "only Hospital accounts may create blood requests")
	}
	draft.RequesterID = strings.TrimSpace(draft.RequesterID)
	if draft.RequesterID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requesterId is required")
	}
	// The claimed role is checked against the stored requester. An
	// unregistered requester is accepted; its mirror write is skipped later.
	requester, err := s.users.FindByID(ctx, draft.RequesterID)
	switch {
	case err == nil:
		if requester.UserRole != models.RoleHospital {
			return nil, dErrors.New(dErrors.CodeForbidden, "only Hospital accounts may create blood requests")
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, translateStoreErr(err, "", "failed to look up requester")
	}

	req, err := models.NewRequest(draft, s.newID(), requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.requests.CreateIfNoPending(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeDuplicatePending, "requester already has a pending request")
		}
		return nil, translateStoreErr(err, "", "failed to create request")
	}

	s.logger.InfoContext(ctx, "blood request created",
		"blood_request_id", req.RequestID,
		"requester_id", req.RequesterID,
		"pin_code", req.PinCode,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.RequestsCreated.Inc()
	}
	s.publish(ctx, models.EventNewRequest, req.RequestID, req)
	return req, nil
}

// ListRequests returns requests newest first, restricted to pinCode when set.
func (s *Service) ListRequests(ctx context.Context, pinCode string) (_ []*models.Request, err error) {
	ctx, finish := s.start(ctx, "list_requests", attribute.String("pin_code", pinCode))
	defer finish(&err)

	reqs, err := s.requests.List(ctx, strings.TrimSpace(pinCode))
	if err != nil {
		return nil, translateStoreErr(err, "", "failed to list requests")
	}
	return reqs, nil
}
