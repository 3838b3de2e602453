package workflow

import "errors"

var (
	// ErrInvalidTransition means the action is not defined for the entity's
	// current state. Not retryable as-is; the caller's view is stale or wrong.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrPermissionDenied means the actor may not invoke the action in the
	// current state.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConcurrentModification means another actor changed the entity's
	// state between load and write. Retryable after a re-read.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrAwardReconciliationRequired means the tender is authoritatively
	// awarded but rejecting the sibling bids did not fully apply; a
	// background runner replays the rejection until it converges.
	ErrAwardReconciliationRequired = errors.New("award reconciliation required")

	// ErrNoBids means award was attempted on a tender with no bids.
	ErrNoBids = errors.New("tender has no bids")

	// ErrBidAlreadyAccepted means a different bid is already accepted for
	// the tender; a second winner is never accepted.
	ErrBidAlreadyAccepted = errors.New("another bid is already accepted")

	// ErrEntityNotFound is returned for an unknown entity id.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrBidNotFound is returned when the winning bid id does not belong to
	// the tender being awarded.
	ErrBidNotFound = errors.New("bid not found for tender")
)
