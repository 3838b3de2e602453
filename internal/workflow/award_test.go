package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"siteflow/internal/workflow"
	"siteflow/models"
)

func tenderWithThreeBids(store *fakeStore) {
	newTender(store, 10, models.StateClosed, "carol")
	store.bids[1] = &models.Bid{ID: 1, TenderID: 10, Bidder: "north", Amount: 100_000, Status: models.BidSubmitted}
	store.bids[2] = &models.Bid{ID: 2, TenderID: 10, Bidder: "south", Amount: 120_000, Status: models.BidUnderReview}
	store.bids[3] = &models.Bid{ID: 3, TenderID: 10, Bidder: "east", Amount: 90_000, Status: models.BidSubmitted}
}

func TestAwardResolvesWholeBidFamily(t *testing.T) {
	store := newFakeStore()
	tenderWithThreeBids(store)
	c := workflow.NewAwardCoordinator(store, nil)

	require.NoError(t, c.Award(context.Background(), 10, 3))

	require.Equal(t, models.BidAccepted, store.bid(3).Status)
	require.Equal(t, models.BidRejected, store.bid(1).Status)
	require.Equal(t, models.BidRejected, store.bid(2).Status)
	require.Equal(t, "east", store.entity(10).AwardedTo)
}

func TestAwardIsIdempotent(t *testing.T) {
	store := newFakeStore()
	tenderWithThreeBids(store)
	c := workflow.NewAwardCoordinator(store, nil)
	ctx := context.Background()

	require.NoError(t, c.Award(ctx, 10, 3))
	// Replaying the identical call changes nothing and returns no error.
	require.NoError(t, c.Award(ctx, 10, 3))

	require.Equal(t, models.BidAccepted, store.bid(3).Status)
	require.Equal(t, models.BidRejected, store.bid(1).Status)
	require.Equal(t, models.BidRejected, store.bid(2).Status)
}

func TestAwardNeverAcceptsASecondBid(t *testing.T) {
	store := newFakeStore()
	tenderWithThreeBids(store)
	c := workflow.NewAwardCoordinator(store, nil)
	ctx := context.Background()

	require.NoError(t, c.Award(ctx, 10, 3))

	err := c.Award(ctx, 10, 1)
	require.ErrorIs(t, err, workflow.ErrBidAlreadyAccepted)

	// The original winner is untouched and no second bid was accepted.
	require.Equal(t, models.BidAccepted, store.bid(3).Status)
	require.Equal(t, models.BidRejected, store.bid(1).Status)
}

func TestAwardRejectsUnknownBidAndEmptyFamily(t *testing.T) {
	store := newFakeStore()
	newTender(store, 10, models.StateClosed, "carol")
	c := workflow.NewAwardCoordinator(store, nil)
	ctx := context.Background()

	err := c.Award(ctx, 10, 1)
	require.ErrorIs(t, err, workflow.ErrNoBids)

	store.bids[1] = &models.Bid{ID: 1, TenderID: 10, Bidder: "north", Amount: 100_000, Status: models.BidSubmitted}
	err = c.Award(ctx, 10, 42)
	require.ErrorIs(t, err, workflow.ErrBidNotFound)
	require.Equal(t, models.BidSubmitted, store.bid(1).Status)
}

func TestAwardPartialFailureParksAndReconverges(t *testing.T) {
	store := newFakeStore()
	tenderWithThreeBids(store)
	store.failReject = 1
	c := workflow.NewAwardCoordinator(store, nil)
	ctx := context.Background()

	err := c.Award(ctx, 10, 3)
	require.Error(t, err)

	// Positive half of the invariant holds even mid-failure.
	require.Equal(t, models.BidAccepted, store.bid(3).Status)
	require.Contains(t, store.parked, 10)

	// Replaying converges: accept is a no-op, the rejections apply, the
	// queue row resolves.
	require.NoError(t, c.Reconcile(ctx, store.parked[10]))
	require.Equal(t, models.BidRejected, store.bid(1).Status)
	require.Equal(t, models.BidRejected, store.bid(2).Status)
	require.Equal(t, models.BidAccepted, store.bid(3).Status)
	require.NotContains(t, store.parked, 10)
}

func TestReconcileSurvivesRepeatedFailures(t *testing.T) {
	store := newFakeStore()
	tenderWithThreeBids(store)
	store.failReject = 3
	c := workflow.NewAwardCoordinator(store, nil)
	ctx := context.Background()

	require.Error(t, c.Award(ctx, 10, 3))
	rec := store.parked[10]

	// Two more sweeps fail, the third converges.
	require.Error(t, c.Reconcile(ctx, rec))
	require.Error(t, c.Reconcile(ctx, rec))
	require.NoError(t, c.Reconcile(ctx, rec))

	require.Equal(t, models.BidRejected, store.bid(1).Status)
	require.Equal(t, models.BidRejected, store.bid(2).Status)
	require.Equal(t, models.BidAccepted, store.bid(3).Status)
}
