package service

import (
	"context"
	"fmt"
	"time"

	"questlog/internal/model"

	"github.com/google/uuid"
)

type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{
		repo: repo,
	}
}

// RegisterUser creates an account. The timezone defaults to UTC and
// must be a resolvable IANA identifier; every later date bucketing for
// the user depends on it.
func (s *UserService) RegisterUser(ctx context.Context, timezone string) (*model.User, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}

	user := &model.User{
		ID:        uuid.New(),
		Timezone:  timezone,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return user, nil
}

// UpdateTimezone switches the zone used for all of the user's date
// bucketing from now on. Historical day keys are left as they were
// recorded.
func (s *UserService) UpdateTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}

	if err := s.repo.UpdateUserTimezone(ctx, id, timezone); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func (s *UserService) GetLeaderboard(ctx context.Context) ([]*model.User, error) {
	users, err := s.repo.TopUsers(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	return users, nil
}
