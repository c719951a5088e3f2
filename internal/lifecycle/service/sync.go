package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"lifeline/internal/lifecycle/models"
)

// SyncAll returns every user and every request. Both collections are read
// concurrently; the snapshot is not transactional across them.
func (s *Service) SyncAll(ctx context.Context) (_ *models.Snapshot, err error) {
	ctx, finish := s.start(ctx, "sync_all")
	defer finish(&err)

	var snap models.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.users.ListAll(gctx)
		if err != nil {
			return translateStoreErr(err, "", "failed to load users")
		}
		snap.Users = users
		return nil
	})
	g.Go(func() error {
		reqs, err := s.requests.List(gctx, "")
		if err != nil {
			return translateStoreErr(err, "", "failed to load requests")
		}
		snap.Requests = reqs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}
