package service

import (
	"github.com/prometheus/client_golang/prometheus/testutil"

	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
)

func (s *ServiceSuite) TestCreateRequest() {
	h := s.hospital("555-0100", "560001")

	s.Run("hospital files a pending request", func() {
		req := s.fileRequest(h, "O-")

		s.Equal(models.RequestStatusPending, req.Status)
		s.Equal(h.UserID, req.RequesterID)
		s.Equal("560001", req.PinCode)
		s.Equal(models.EventNewRequest, s.publisher.last().Name)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.RequestsCreated))
	})

	s.Run("creation leaves the hospital record untouched", func() {
		stored := s.storedUser(h.UserID)
		s.False(stored.IsRequestActive)
		s.Empty(stored.BloodTypeNeeded)
		s.Empty(stored.RequestPinCode)
		s.Equal(h.UpdatedAt, stored.UpdatedAt)
	})

	s.Run("second pending request rejected", func() {
		_, err := s.service.CreateRequest(s.ctx(), models.RequestDraft{
			RequesterID: h.UserID,
			UserRole:    models.RoleHospital,
			PinCode:     "560001",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicatePending))
	})

	s.Run("donors may not file requests", func() {
		d := s.verifiedDonor("555-0200", "560001", "O+")
		before := len(s.publisher.names())

		_, err := s.service.CreateRequest(s.ctx(), models.RequestDraft{
			RequesterID: d.UserID,
			UserRole:    models.RoleDonor,
			PinCode:     "560001",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Len(s.publisher.names(), before)

		reqs, err := s.service.ListRequests(s.ctx(), "")
		s.Require().NoError(err)
		for _, r := range reqs {
			s.NotEqual(d.UserID, r.RequesterID)
		}
	})

	s.Run("donor claiming Hospital role is forbidden", func() {
		d := s.verifiedDonor("555-0300", "560001", "A+")
		before := len(s.publisher.names())

		_, err := s.service.CreateRequest(s.ctx(), models.RequestDraft{
			RequesterID:     d.UserID,
			UserRole:        models.RoleHospital,
			PinCode:         "560001",
			BloodTypeNeeded: "A+",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Len(s.publisher.names(), before)

		reqs, err := s.service.ListRequests(s.ctx(), "")
		s.Require().NoError(err)
		for _, r := range reqs {
			s.NotEqual(d.UserID, r.RequesterID)
		}
	})

	s.Run("missing requester", func() {
		_, err := s.service.CreateRequest(s.ctx(), models.RequestDraft{UserRole: models.RoleHospital})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestNewRequestAllowedAfterResolution() {
	h := s.hospital("555-0100", "560001")
	first := s.fileRequest(h, "O-")

	_, err := s.service.ResolveRequest(s.ctx(), first.RequestID, "deny")
	s.Require().NoError(err)

	second := s.fileRequest(h, "B+")
	s.NotEqual(first.RequestID, second.RequestID)
}

func (s *ServiceSuite) TestListRequestsNewestFirst() {
	h1 := s.hospital("1", "560001")
	h2 := s.hospital("2", "560002")
	h3 := s.hospital("3", "560001")
	r1 := s.fileRequest(h1, "O-")
	r2 := s.fileRequest(h2, "A+")
	r3 := s.fileRequest(h3, "B+")

	s.Run("all", func() {
		reqs, err := s.service.ListRequests(s.ctx(), "")
		s.Require().NoError(err)
		s.Equal([]string{r3.RequestID, r2.RequestID, r1.RequestID}, requestIDs(reqs))
		for i := 1; i < len(reqs); i++ {
			s.False(reqs[i].CreatedAt.After(reqs[i-1].CreatedAt))
		}
	})
	s.Run("by pin code", func() {
		reqs, err := s.service.ListRequests(s.ctx(), "560001")
		s.Require().NoError(err)
		s.Equal([]string{r3.RequestID, r1.RequestID}, requestIDs(reqs))
	})
}

func requestIDs(reqs []*models.Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.RequestID)
	}
	return out
}
