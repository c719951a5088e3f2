package service

import (
	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
)

func (s *ServiceSuite) TestListDonors() {
	d1 := s.verifiedDonor("1", "560001", "O+")
	d2 := s.verifiedDonor("2", "560001", "A+")
	s.register("3", models.RoleDonor, "560001", "O+")
	s.verifiedDonor("4", "560002", "O+")
	s.hospital("5", "560001")
	denied := s.register("6", models.RoleDonor, "560001", "O+")
	_, err := s.service.SetUserStatus(s.ctx(), denied.UserID, "deny")
	s.Require().NoError(err)

	s.Run("every verified donor in the pin code", func() {
		donors, err := s.service.ListDonors(s.ctx(), "560001", "")
		s.Require().NoError(err)
		s.ElementsMatch([]string{d1.UserID, d2.UserID}, userIDs(donors))
		for _, d := range donors {
			s.Equal(models.RoleDonor, d.UserRole)
			s.Equal(models.UserStatusVerified, d.Status)
			s.Equal("560001", d.PinCode)
		}
	})

	s.Run("narrowed by blood type", func() {
		donors, err := s.service.ListDonors(s.ctx(), "560001", "O+")
		s.Require().NoError(err)
		s.Equal([]string{d1.UserID}, userIDs(donors))
	})

	s.Run("pin code required", func() {
		_, err := s.service.ListDonors(s.ctx(), " ", "O+")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func userIDs(users []*models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.UserID)
	}
	return out
}
