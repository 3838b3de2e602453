package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"siteflow/models"
)

// AwardStore is the slice of the store the coordinator owns during an award:
// bid statuses, the tender's awarded_to field and the reconciliation queue.
type AwardStore interface {
	BidLister
	AcceptBid(ctx context.Context, tenderID, bidID int) error
	RejectOtherBids(ctx context.Context, tenderID, winningBidID int) error
	SetAwardedTo(ctx context.Context, tenderID int, bidder string) error
	EnqueueAwardReconciliation(ctx context.Context, tenderID, winningBidID int) error
	ResolveAwardReconciliation(ctx context.Context, tenderID int) error
}

// AwardCoordinator resolves a tender's bid family when the tender is awarded:
// the winning bid is accepted first, then every sibling is rejected. Both
// writes are idempotent set-operations, so a partial failure is parked as a
// reconciliation row and replayed until it converges instead of being rolled
// back.
type AwardCoordinator struct {
	store  AwardStore
	logger *slog.Logger
}

func NewAwardCoordinator(store AwardStore, logger *slog.Logger) *AwardCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AwardCoordinator{store: store, logger: logger}
}

// validateWinner checks that the winning bid belongs to the tender and that
// no other bid is already accepted. Re-validating an already-accepted winner
// succeeds, which keeps a replayed award call idempotent.
func (c *AwardCoordinator) validateWinner(ctx context.Context, tenderID, winningBidID int) (*models.Bid, error) {
	bids, err := c.store.ListBidsForTender(ctx, tenderID)
	if err != nil {
		return nil, fmt.Errorf("list bids for tender %d: %w", tenderID, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("%w: tender %d", ErrNoBids, tenderID)
	}

	var winner *models.Bid
	for i := range bids {
		b := &bids[i]
		if b.ID == winningBidID {
			winner = b
			continue
		}
		if b.Status == models.BidAccepted {
			return nil, fmt.Errorf("%w: tender %d already accepted bid %d",
				ErrBidAlreadyAccepted, tenderID, b.ID)
		}
	}
	if winner == nil {
		return nil, fmt.Errorf("%w: bid %d, tender %d", ErrBidNotFound, winningBidID, tenderID)
	}
	return winner, nil
}

// Award commits the tender's outcome: accept the winner, stamp awarded_to,
// reject the siblings. Any failure after the validation enqueues a
// reconciliation row; the returned error tells the caller convergence is
// pending, not that the award failed.
func (c *AwardCoordinator) Award(ctx context.Context, tenderID, winningBidID int) error {
	winner, err := c.validateWinner(ctx, tenderID, winningBidID)
	if err != nil {
		return err
	}

	// Accept first: the invariant's positive half must never be observably
	// missing while the tender reads as awarded.
	if err := c.store.AcceptBid(ctx, tenderID, winner.ID); err != nil {
		return c.park(ctx, tenderID, winningBidID, fmt.Errorf("accept bid %d: %w", winner.ID, err))
	}
	if err := c.store.SetAwardedTo(ctx, tenderID, winner.Bidder); err != nil {
		return c.park(ctx, tenderID, winningBidID, fmt.Errorf("stamp awarded_to: %w", err))
	}
	if err := c.store.RejectOtherBids(ctx, tenderID, winner.ID); err != nil {
		return c.park(ctx, tenderID, winningBidID, fmt.Errorf("reject sibling bids: %w", err))
	}
	return nil
}

func (c *AwardCoordinator) park(ctx context.Context, tenderID, winningBidID int, cause error) error {
	if err := c.store.EnqueueAwardReconciliation(ctx, tenderID, winningBidID); err != nil {
		// Without the queue row the sweeper never retries this tender, so the
		// enqueue failure is surfaced alongside the original cause.
		c.logger.Error("failed to enqueue award reconciliation",
			"tender_id", tenderID, "error", err)
		return errors.Join(cause, err)
	}
	return cause
}

// Reconcile replays the idempotent award writes for a parked tender and
// resolves the queue row once every write sticks.
func (c *AwardCoordinator) Reconcile(ctx context.Context, rec models.AwardReconciliation) error {
	winner, err := c.validateWinner(ctx, rec.TenderID, rec.WinningBidID)
	if err != nil {
		return fmt.Errorf("reconcile tender %d: %w", rec.TenderID, err)
	}
	if err := c.store.AcceptBid(ctx, rec.TenderID, winner.ID); err != nil {
		return fmt.Errorf("reconcile accept bid %d: %w", winner.ID, err)
	}
	if err := c.store.SetAwardedTo(ctx, rec.TenderID, winner.Bidder); err != nil {
		return fmt.Errorf("reconcile awarded_to: %w", err)
	}
	if err := c.store.RejectOtherBids(ctx, rec.TenderID, winner.ID); err != nil {
		return fmt.Errorf("reconcile reject siblings: %w", err)
	}
	if err := c.store.ResolveAwardReconciliation(ctx, rec.TenderID); err != nil {
		return fmt.Errorf("resolve reconciliation for tender %d: %w", rec.TenderID, err)
	}
	c.logger.Info("award reconciliation converged",
		"tender_id", rec.TenderID, "winning_bid_id", rec.WinningBidID)
	return nil
}
