package service

import (
	"context"
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
)

func (s *ServiceSuite) TestListPendingUsers() {
	a := s.register("1", models.RoleDonor, "560001", "O+")
	b := s.register("2", models.RoleHospital, "560001", "")
	s.verifiedDonor("3", "560001", "A+")

	pending, err := s.service.ListPendingUsers(s.ctx())
	s.Require().NoError(err)
	s.Equal([]string{a.UserID, b.UserID}, userIDs(pending))
}

func (s *ServiceSuite) TestSetUserStatus() {
	u := s.register("555-0001", models.RoleDonor, "560001", "O+")

	s.Run("approve verifies and publishes", func() {
		s.publisher.reset()
		got, err := s.service.SetUserStatus(s.ctx(), u.UserID, "approve")
		s.Require().NoError(err)
		s.Equal(models.UserStatusVerified, got.Status)
		s.Equal([]string{models.EventUserVerified}, s.publisher.names())
		s.Equal(models.UserVerified{UserID: u.UserID, Status: models.UserStatusVerified}, s.publisher.last().Data)
	})

	s.Run("repeating approve is a no-op", func() {
		s.publisher.reset()
		got, err := s.service.SetUserStatus(s.ctx(), u.UserID, "APPROVE")
		s.Require().NoError(err)
		s.Equal(models.UserStatusVerified, got.Status)
		s.Empty(s.publisher.names())
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.UsersVerified.WithLabelValues("VERIFIED")))
	})

	s.Run("deny", func() {
		got, err := s.service.SetUserStatus(s.ctx(), u.UserID, "deny")
		s.Require().NoError(err)
		s.Equal(models.UserStatusDenied, got.Status)
		s.Equal(models.UserStatusDenied, s.storedUser(u.UserID).Status)
	})

	s.Run("unknown user", func() {
		_, err := s.service.SetUserStatus(s.ctx(), "ghost", "approve")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown action", func() {
		_, err := s.service.SetUserStatus(s.ctx(), u.UserID, "suspend")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestApproveRequest() {
	h := s.hospital("555-0100", "560001")
	match1 := s.verifiedDonor("1", "560001", "O-")
	match2 := s.verifiedDonor("2", "560001", "O-")
	s.verifiedDonor("3", "560001", "A+")
	s.register("4", models.RoleDonor, "560001", "O-")
	s.verifiedDonor("5", "560002", "O-")
	req := s.fileRequest(h, "O-")
	s.publisher.reset()

	got, err := s.service.ResolveRequest(s.ctx(), req.RequestID, "approve")
	s.Require().NoError(err)
	s.Equal(models.RequestStatusApproved, got.Status)

	s.Run("hospital mirror reflects the request", func() {
		stored := s.storedUser(h.UserID)
		s.Equal(models.Mirror{Active: true, BloodTypeNeeded: "O-", RequestPinCode: "560001"}, stored.Mirror())
	})

	s.Run("approval event lists matching verified donors", func() {
		s.Equal([]string{models.EventRequestApproved}, s.publisher.names())
		payload, ok := s.publisher.last().Data.(models.RequestApproved)
		s.Require().True(ok)
		s.Equal(req.RequestID, payload.RequestID)
		s.Equal("560001", payload.PinCode)
		s.Equal("O-", payload.BloodTypeNeeded)
		s.ElementsMatch([]string{match1.UserID, match2.UserID}, payload.DonorIDs)
	})

	s.Run("approving again changes nothing", func() {
		s.publisher.reset()
		again, err := s.service.ResolveRequest(s.ctx(), req.RequestID, "approve")
		s.Require().NoError(err)
		s.Equal(models.RequestStatusApproved, again.Status)
		s.Empty(s.publisher.names())
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.RequestsResolved.WithLabelValues("approve")))
	})

	s.Run("status is monotone", func() {
		_, err := s.service.ResolveRequest(s.ctx(), req.RequestID, "deny")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		stored, err := s.requests.FindByID(s.ctx(), req.RequestID)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusApproved, stored.Status)
	})
}

func (s *ServiceSuite) TestDenyRequest() {
	s.Run("deny of a never approved request leaves the mirror alone", func() {
		h := s.hospital("555-0100", "560001")
		before := s.storedUser(h.UserID)
		req := s.fileRequest(h, "O-")
		s.publisher.reset()

		got, err := s.service.ResolveRequest(s.ctx(), req.RequestID, "deny")
		s.Require().NoError(err)
		s.Equal(models.RequestStatusDenied, got.Status)

		after := s.storedUser(h.UserID)
		s.Equal(models.Mirror{}, after.Mirror())
		s.Equal(before.UpdatedAt, after.UpdatedAt, "inactive mirror is not rewritten")
		s.Equal([]string{models.EventRequestDenied}, s.publisher.names())
		s.Equal(models.RequestDenied{RequestID: req.RequestID}, s.publisher.last().Data)
	})

	s.Run("deny after an earlier approval clears the mirror", func() {
		h := s.hospital("555-0200", "560003")
		first := s.fileRequest(h, "AB+")
		_, err := s.service.ResolveRequest(s.ctx(), first.RequestID, "approve")
		s.Require().NoError(err)
		s.True(s.storedUser(h.UserID).IsRequestActive)

		second := s.fileRequest(h, "B-")
		_, err = s.service.ResolveRequest(s.ctx(), second.RequestID, "deny")
		s.Require().NoError(err)
		s.Equal(models.Mirror{}, s.storedUser(h.UserID).Mirror())
	})
}

func (s *ServiceSuite) TestResolveRequestErrors() {
	s.Run("unknown request", func() {
		_, err := s.service.ResolveRequest(s.ctx(), "nope", "approve")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
	s.Run("unknown action", func() {
		h := s.hospital("555-0100", "560001")
		req := s.fileRequest(h, "O-")
		_, err := s.service.ResolveRequest(s.ctx(), req.RequestID, "maybe")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestResolveWithMissingHospital() {
	// A request whose requester was never registered.
	req, err := s.service.CreateRequest(s.ctx(), models.RequestDraft{
		RequesterID:     "gone",
		UserRole:        models.RoleHospital,
		PinCode:         "560001",
		BloodTypeNeeded: "O+",
	})
	s.Require().NoError(err)

	got, err := s.service.ResolveRequest(s.ctx(), req.RequestID, "approve")
	s.Require().NoError(err)
	s.Equal(models.RequestStatusApproved, got.Status)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.MirrorMissing))
	s.Empty(s.repairer.jobs)
	s.Equal(models.EventRequestApproved, s.publisher.last().Name)
}

func (s *ServiceSuite) TestResolveNeverStampsNonHospital() {
	d := s.verifiedDonor("555-0777", "560001", "O+")
	before := s.storedUser(d.UserID)

	// Stored directly: the service refuses donor requesters at creation.
	req, err := models.NewRequest(models.RequestDraft{
		RequesterID:     d.UserID,
		UserRole:        models.RoleHospital,
		PinCode:         "560001",
		BloodTypeNeeded: "O+",
	}, "r-donor", s.clock)
	s.Require().NoError(err)
	s.Require().NoError(s.requests.CreateIfNoPending(context.Background(), req))

	got, err := s.service.ResolveRequest(s.ctx(), req.RequestID, "approve")
	s.Require().NoError(err)
	s.Equal(models.RequestStatusApproved, got.Status)

	stored := s.storedUser(d.UserID)
	s.Equal(models.Mirror{}, stored.Mirror())
	s.Equal(before.UpdatedAt, stored.UpdatedAt)
	s.Empty(s.repairer.jobs)
}

func (s *ServiceSuite) TestApproveDenyRoundTrip() {
	h := s.hospital("555-0100", "560001")
	initial := s.storedUser(h.UserID).Mirror()

	first := s.fileRequest(h, "O-")
	_, err := s.service.ResolveRequest(s.ctx(), first.RequestID, "approve")
	s.Require().NoError(err)

	second := s.fileRequest(h, "O-")
	_, err = s.service.ResolveRequest(s.ctx(), second.RequestID, "deny")
	s.Require().NoError(err)

	s.Equal(initial, s.storedUser(h.UserID).Mirror())
}

func (s *ServiceSuite) TestPublishFailureDoesNotFailTheCall() {
	s.publisher.err = errPublish
	u := s.register("555-0001", models.RoleDonor, "560001", "O+")

	s.NotEmpty(u.UserID)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PublishFailures.WithLabelValues(models.EventUserRegistered)))
}

func (s *ServiceSuite) TestEventPayloadsEncode() {
	u := s.register("555-0001", models.RoleDonor, "560001", "O+")

	raw, err := json.Marshal(s.publisher.last())
	s.Require().NoError(err)

	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(raw, &env))
	s.Equal(models.EventUserRegistered, env.Event)
	s.Contains(string(env.Data), u.UserID)
}
