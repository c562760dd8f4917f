package domain

import (
	"context"
	"time"
)

// PointsPerActivity is the fixed increment granted per recorded activity,
// regardless of emission sign, type, or quantity.
const PointsPerActivity = 10

// Badge is an externally granted achievement surfaced read-only here.
type Badge struct {
	ID        string
	OwnerID   string
	Name      string
	Icon      string
	GrantedAt time.Time
}

// Rewards bundles an account's point balance with its badges.
type Rewards struct {
	Points int64
	Badges []Badge
}

// RewardsRepository reads reward state for an account.
type RewardsRepository interface {
	// RewardsByOwner returns nil when the account does not exist.
	RewardsByOwner(ctx context.Context, ownerID string) (*Rewards, error)
}

// RewardsService exposes the read side of the rewards engine. The write
// side (point increments) runs in the event consumer.
type RewardsService struct {
	repo RewardsRepository
}

// NewRewardsService constructs a RewardsService.
func NewRewardsService(repo RewardsRepository) *RewardsService {
	return &RewardsService{repo: repo}
}

// GetRewards returns the current point balance and badge set.
func (s *RewardsService) GetRewards(ctx context.Context, ownerID string) (*Rewards, error) {
	rewards, err := s.repo.RewardsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if rewards == nil {
		return nil, ErrAccountNotFound
	}
	return rewards, nil
}
