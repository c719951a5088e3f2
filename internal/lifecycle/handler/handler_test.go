package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"lifeline/internal/lifecycle/handler/mocks"
	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	r.Route("/admin", h.RegisterAdmin)
	s.router = r
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestRegister() {
	s.Run("creates pending user", func() {
		s.service.EXPECT().Register(gomock.Any(), models.UserProfile{
			Name:      "Asha",
			Phone:     "9000000001",
			UserRole:  models.RoleDonor,
			PinCode:   "560001",
			BloodType: "O+",
			Age:       29,
			Weight:    61.5,
		}).Return(&models.User{
			UserID:   "u-1",
			Phone:    "9000000001",
			UserRole: models.RoleDonor,
			Status:   models.UserStatusPendingVerification,
		}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", map[string]any{
			"name":      "Asha",
			"phone":     " 9000000001 ",
			"userRole":  "Donor",
			"pinCode":   "560001",
			"bloodType": "O+",
			"age":       29,
			"weight":    61.5,
			"status":    "VERIFIED",
		}))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		body := testutil.UnmarshalResponse[UserResponse](s.T(), rr)
		s.Equal("u-1", body.User.UserID)
		s.Equal(models.UserStatusPendingVerification, body.User.Status)
	})

	s.Run("missing phone is rejected before the service", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", map[string]any{
			"name": "Asha",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("unknown role is rejected", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", map[string]any{
			"phone":    "9000000001",
			"userRole": "Admin",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("malformed body", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/auth/register", "{"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("duplicate phone maps to 409", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicatePhone, "phone already registered"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", map[string]any{
			"phone": "9000000001",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeDuplicatePhone))
	})
}

func (s *HandlerSuite) TestLogin() {
	s.Run("known phone", func() {
		s.service.EXPECT().Login(gomock.Any(), "9000000001").
			Return(&models.User{UserID: "u-1", Phone: "9000000001"}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login", LoginRequest{Phone: "9000000001"}))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[UserResponse](s.T(), rr)
		s.Equal("u-1", body.User.UserID)
	})

	s.Run("unknown phone", func() {
		s.service.EXPECT().Login(gomock.Any(), "9000000009").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "user not found"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login", LoginRequest{Phone: "9000000009"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *HandlerSuite) TestListDonors() {
	s.Run("passes query filters", func() {
		s.service.EXPECT().ListDonors(gomock.Any(), "560001", "O+").
			Return([]*models.User{{UserID: "d-1"}}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/donors?pin=560001&bloodType=O%2B"))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[DonorsResponse](s.T(), rr)
		s.Require().Len(body.Donors, 1)
		s.Equal("d-1", body.Donors[0].UserID)
	})

	s.Run("empty result is an empty array", func() {
		s.service.EXPECT().ListDonors(gomock.Any(), "560001", "").Return(nil, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/donors?pin=560001"))
		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`{"donors":[]}`, rr.Body.String())
	})

	s.Run("missing pin", func() {
		s.service.EXPECT().ListDonors(gomock.Any(), "", "").
			Return(nil, dErrors.New(dErrors.CodeValidation, "pin is required"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/donors"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestCreateRequest() {
	s.Run("hospital files a request", func() {
		s.service.EXPECT().CreateRequest(gomock.Any(), models.RequestDraft{
			RequesterID:     "h-1",
			Name:            "City Hospital",
			UserRole:        models.RoleHospital,
			PinCode:         "560001",
			BloodTypeNeeded: "A-",
		}).Return(&models.Request{RequestID: "r-1", Status: models.RequestStatusPending}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/request", CreateBloodRequest{
			RequesterID:     "h-1",
			Name:            "City Hospital",
			UserRole:        "Hospital",
			PinCode:         "560001",
			BloodTypeNeeded: "A-",
		}))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		body := testutil.UnmarshalResponse[RequestResponse](s.T(), rr)
		s.Equal("r-1", body.Request.RequestID)
		s.Equal(models.RequestStatusPending, body.Request.Status)
	})

	s.Run("donor is forbidden", func() {
		s.service.EXPECT().CreateRequest(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "only Hospital accounts may create blood requests"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/request", CreateBloodRequest{UserRole: "Donor"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	s.Run("second pending request", func() {
		s.service.EXPECT().CreateRequest(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicatePending, "requester already has a pending request"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/request", CreateBloodRequest{
			RequesterID: "h-1",
			UserRole:    "Hospital",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeDuplicatePending))
	})
}

func (s *HandlerSuite) TestListRequestsAndSync() {
	s.Run("requests by pin", func() {
		s.service.EXPECT().ListRequests(gomock.Any(), "560001").
			Return([]*models.Request{{RequestID: "r-2"}, {RequestID: "r-1"}}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/requests?pin=560001"))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[RequestsResponse](s.T(), rr)
		s.Require().Len(body.Requests, 2)
		s.Equal("r-2", body.Requests[0].RequestID)
	})

	s.Run("sync returns both collections", func() {
		s.service.EXPECT().SyncAll(gomock.Any()).Return(&models.Snapshot{
			Users: []*models.User{{UserID: "u-1"}},
		}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/sync-storage"))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[SyncResponse](s.T(), rr)
		s.Len(body.Users, 1)
		s.NotNil(body.Requests)
		s.Empty(body.Requests)
	})

	s.Run("store failure hides the description", func() {
		s.service.EXPECT().SyncAll(gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("connection reset"), dErrors.CodeInternal, "failed to load users"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/sync-storage"))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal(string(dErrors.CodeInternal), body["error"])
		s.NotContains(body, "error_description")
	})
}

func (s *HandlerSuite) TestAdminUsers() {
	s.Run("pending users", func() {
		s.service.EXPECT().ListPendingUsers(gomock.Any()).
			Return([]*models.User{{UserID: "u-1", Status: models.UserStatusPendingVerification}}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/admin/pending-users"))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[UsersResponse](s.T(), rr)
		s.Len(body.Users, 1)
	})

	s.Run("deny through the status route", func() {
		s.service.EXPECT().SetUserStatus(gomock.Any(), "u-1", "deny").
			Return(&models.User{UserID: "u-1", Status: models.UserStatusDenied}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/admin/users/u-1/status", ActionRequest{Action: "Deny"}))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[UserResponse](s.T(), rr)
		s.Equal(models.UserStatusDenied, body.User.Status)
	})

	s.Run("approve alias needs no body", func() {
		s.service.EXPECT().SetUserStatus(gomock.Any(), "u-1", "approve").
			Return(&models.User{UserID: "u-1", Status: models.UserStatusVerified}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPut, "/admin/approve-user/u-1"))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("unknown action", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/admin/users/u-1/status", ActionRequest{Action: "ban"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("unknown user", func() {
		s.service.EXPECT().SetUserStatus(gomock.Any(), "missing", "approve").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "user not found"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPut, "/admin/approve-user/missing"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *HandlerSuite) TestAdminResolveRequest() {
	s.Run("approve", func() {
		s.service.EXPECT().ResolveRequest(gomock.Any(), "r-1", "approve").
			Return(&models.Request{RequestID: "r-1", Status: models.RequestStatusApproved}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/admin/approve-request/r-1", ActionRequest{Action: "approve"}))
		testutil.AssertStatusOK(s.T(), rr)
		body := testutil.UnmarshalResponse[RequestResponse](s.T(), rr)
		s.Equal(models.RequestStatusApproved, body.Request.Status)
	})

	s.Run("opposite action on a resolved request", func() {
		s.service.EXPECT().ResolveRequest(gomock.Any(), "r-1", "deny").
			Return(nil, dErrors.New(dErrors.CodeConflict, "request already approved"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/admin/approve-request/r-1", ActionRequest{Action: "deny"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("missing action", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/admin/approve-request/r-1", map[string]string{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}
