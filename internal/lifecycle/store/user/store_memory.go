// Package user persists donor and hospital accounts.
package user

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"lifeline/internal/lifecycle/models"
	"lifeline/pkg/platform/sentinel"
)

// InMemoryStore keeps users in process memory. Uniqueness of userId and
// phone is checked and enforced under one lock.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	byPhone map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[string]*models.User),
		byPhone: make(map[string]string),
	}
}

func (s *InMemoryStore) CreateIfPhoneAvailable(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byPhone[user.Phone]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, taken := s.users[user.UserID]; taken {
		return sentinel.ErrDuplicateID
	}
	stored := *user
	s.users[user.UserID] = &stored
	s.byPhone[user.Phone] = user.UserID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *InMemoryStore) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byPhone[phone]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.users[userID]
	return &out, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status models.UserStatus) ([]*models.User, error) {
	return s.collect(func(u *models.User) bool { return u.Status == status }), nil
}

func (s *InMemoryStore) ListDonors(_ context.Context, filter models.DonorFilter) ([]*models.User, error) {
	return s.collect(filter.Matches), nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]*models.User, error) {
	return s.collect(func(*models.User) bool { return true }), nil
}

// Execute runs validate and mutate on a copy and stores it only when
// validate succeeds.
func (s *InMemoryStore) Execute(_ context.Context, userID string, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := *current
	if err := validate(&next); err != nil {
		return nil, err
	}
	mutate(&next)
	s.users[userID] = &next

	out := next
	return &out, nil
}

// collect returns copies of matching users ordered by registration time.
func (s *InMemoryStore) collect(match func(*models.User) bool) []*models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0)
	for _, u := range s.users {
		if match(u) {
			c := *u
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}
