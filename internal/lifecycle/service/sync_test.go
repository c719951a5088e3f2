package service

import (
	"lifeline/internal/lifecycle/models"
)

func (s *ServiceSuite) TestSyncAll() {
	s.Run("empty system", func() {
		snap, err := s.service.SyncAll(s.ctx())
		s.Require().NoError(err)
		s.Empty(snap.Users)
		s.Empty(snap.Requests)
	})

	s.Run("returns every user and request", func() {
		h := s.hospital("555-0100", "560001")
		d := s.register("555-0200", models.RoleDonor, "560001", "O+")
		req := s.fileRequest(h, "O-")

		snap, err := s.service.SyncAll(s.ctx())
		s.Require().NoError(err)
		s.ElementsMatch([]string{h.UserID, d.UserID}, userIDs(snap.Users))
		s.Equal([]string{req.RequestID}, requestIDs(snap.Requests))
	})
}
