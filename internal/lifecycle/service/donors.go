package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
)

// ListDonors returns verified donors in pinCode, optionally narrowed to one
// blood type. Unverified and denied donors are never returned.
func (s *Service) ListDonors(ctx context.Context, pinCode, bloodType string) (_ []*models.User, err error) {
	ctx, finish := s.start(ctx, "list_donors",
		attribute.String("pin_code", pinCode),
		attribute.String("blood_type", bloodType),
	)
	defer finish(&err)

	filter := models.DonorFilter{
		PinCode:   strings.TrimSpace(pinCode),
		BloodType: strings.TrimSpace(bloodType),
	}
	if filter.PinCode == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "pin is required")
	}
	donors, err := s.users.ListDonors(ctx, filter)
	if err != nil {
		return nil, translateStoreErr(err, "", "failed to list donors")
	}
	return donors, nil
}

func (s *Service) matchingDonorIDs(ctx context.Context, req *models.Request) ([]string, error) {
	donors, err := s.users.ListDonors(ctx, req.DonorFilter())
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(donors))
	for _, d := range donors {
		ids = append(ids, d.UserID)
	}
	return ids, nil
}
