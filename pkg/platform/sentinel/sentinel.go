package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the lifecycle service can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in the store
//   - ErrAlreadyUsed: a unique key (phone, pending requester) is taken
//   - ErrDuplicateID: the entity's own id is taken
//   - ErrUnavailable: backend temporarily unavailable
//
// Validation failures never use these; see pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrDuplicateID = errors.New("duplicate id")
	ErrUnavailable = errors.New("unavailable")
)
