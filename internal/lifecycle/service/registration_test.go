package service

import (
	"github.com/prometheus/client_golang/prometheus/testutil"

	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
)

func (s *ServiceSuite) TestRegister() {
	s.Run("new user starts pending with a generated id", func() {
		u := s.register("555-0001", models.RoleDonor, "560001", "O+")

		s.NotEmpty(u.UserID)
		s.Equal(models.UserStatusPendingVerification, u.Status)
		s.Equal(models.EventUserRegistered, s.publisher.last().Name)
		s.Equal(u.UserID, s.publisher.last().Key)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.UsersRegistered))
	})

	s.Run("caller supplied id is kept", func() {
		u, err := s.service.Register(s.ctx(), models.UserProfile{UserID: "donor-42", Phone: "555-0042", UserRole: models.RoleDonor})
		s.Require().NoError(err)
		s.Equal("donor-42", u.UserID)
	})

	s.Run("duplicate phone rejected and nothing published", func() {
		before := len(s.publisher.names())
		_, err := s.service.Register(s.ctx(), models.UserProfile{Phone: "555-0001", UserRole: models.RoleHospital})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicatePhone))
		s.Len(s.publisher.names(), before)
	})

	s.Run("duplicate explicit id rejected", func() {
		_, err := s.service.Register(s.ctx(), models.UserProfile{UserID: "donor-42", Phone: "555-9999"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("blank phone is invalid", func() {
		_, err := s.service.Register(s.ctx(), models.UserProfile{Phone: "  ", UserRole: models.RoleDonor})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown role is invalid", func() {
		_, err := s.service.Register(s.ctx(), models.UserProfile{Phone: "555-0777", UserRole: "Admin"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestRegisterIgnoresCallerStatusAndMirror() {
	u := s.register("555-0100", models.RoleHospital, "560001", "")
	stored := s.storedUser(u.UserID)

	s.Equal(models.UserStatusPendingVerification, stored.Status)
	s.Equal(models.Mirror{}, stored.Mirror())
}

func (s *ServiceSuite) TestLogin() {
	u := s.register("555-0001", models.RoleDonor, "560001", "O+")

	s.Run("known phone", func() {
		got, err := s.service.Login(s.ctx(), " 555-0001 ")
		s.Require().NoError(err)
		s.Equal(u.UserID, got.UserID)
	})
	s.Run("unknown phone", func() {
		_, err := s.service.Login(s.ctx(), "555-0404")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
	s.Run("blank phone", func() {
		_, err := s.service.Login(s.ctx(), "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
