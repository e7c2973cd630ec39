package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/domain"
)

type EligibilityService struct {
	profiles ProfileSource
}

func NewEligibilityService(profiles ProfileSource) *EligibilityService {
	return &EligibilityService{profiles: profiles}
}

type Eligibility struct {
	Allowed bool              `json:"allowed"`
	Tier    domain.SellerTier `json:"tier"`
}

func (s *EligibilityService) Check(ctx context.Context, buyerID uuid.UUID) (Eligibility, error) {
	if buyerID == uuid.Nil {
		return Eligibility{}, domain.ErrValidation
	}
	seller, err := s.profiles.GetSeller(ctx, buyerID)
	if err != nil {
		return Eligibility{}, err
	}
	return Eligibility{Allowed: seller.EligibleForEliteSlots(), Tier: seller.Tier}, nil
}
