// Package request persists hospital blood requests.
package request

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"lifeline/internal/lifecycle/models"
	"lifeline/pkg/platform/sentinel"
)

type entry struct {
	req *models.Request
	seq uint64
}

// InMemoryStore keeps requests in process memory. The one-pending-request
// rule is checked and enforced under one lock.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[string]entry
	nextSeq  uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[string]entry)}
}

func (s *InMemoryStore) CreateIfNoPending(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.requests[req.RequestID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	for _, e := range s.requests {
		if e.req.RequesterID == req.RequesterID && e.req.Status == models.RequestStatusPending {
			return sentinel.ErrAlreadyUsed
		}
	}
	stored := *req
	s.nextSeq++
	s.requests[req.RequestID] = entry{req: &stored, seq: s.nextSeq}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID string) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *e.req
	return &out, nil
}

// List returns requests newest first. Requests created in the same instant
// keep reverse insertion order.
func (s *InMemoryStore) List(_ context.Context, pinCode string) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]entry, 0, len(s.requests))
	for _, e := range s.requests {
		if pinCode == "" || e.req.PinCode == pinCode {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b entry) int {
		if c := b.req.CreatedAt.Compare(a.req.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})

	out := make([]*models.Request, 0, len(matched))
	for _, e := range matched {
		c := *e.req
		out = append(out, &c)
	}
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, requestID string, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := *e.req
	if err := validate(&next); err != nil {
		return nil, err
	}
	mutate(&next)
	s.requests[requestID] = entry{req: &next, seq: e.seq}

	out := next
	return &out, nil
}
