package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"siteflow/internal/workflow"
	"siteflow/models"
)

func resolverWith(store *fakeStore) *workflow.Resolver {
	return workflow.NewResolver(store)
}

func TestPossibleActionsRequestOwnership(t *testing.T) {
	store := newFakeStore()
	r := resolverWith(store)
	ctx := context.Background()

	entity := &models.WorkflowEntity{
		ID: 1, Kind: models.KindRequest, CurrentState: models.StateDraft,
		RaisedBy: "alice", AssignedTo: "bob",
	}

	actions, err := r.PossibleActions(ctx, entity, "alice")
	require.NoError(t, err)
	require.True(t, actions.Has(models.ActionSubmitForReview))

	actions, err = r.PossibleActions(ctx, entity, "bob")
	require.NoError(t, err)
	require.Empty(t, actions)

	entity.CurrentState = models.StateReview
	actions, err = r.PossibleActions(ctx, entity, "bob")
	require.NoError(t, err)
	require.ElementsMatch(t, []models.Action{
		models.ActionApprove,
		models.ActionRequestAdditionalInput,
		models.ActionRequestRevision,
	}, actions.List())

	actions, err = r.PossibleActions(ctx, entity, "alice")
	require.NoError(t, err)
	require.Empty(t, actions)

	entity.CurrentState = models.StateRevisionRequired
	actions, err = r.PossibleActions(ctx, entity, "alice")
	require.NoError(t, err)
	require.True(t, actions.Has(models.ActionSubmitForReview))

	entity.CurrentState = models.StateApproved
	actions, err = r.PossibleActions(ctx, entity, "bob")
	require.NoError(t, err)
	require.True(t, actions.Has(models.ActionRespond))

	entity.CurrentState = models.StateResponded
	actions, err = r.PossibleActions(ctx, entity, "alice")
	require.NoError(t, err)
	require.True(t, actions.Has(models.ActionClose))
	actions, err = r.PossibleActions(ctx, entity, "bob")
	require.NoError(t, err)
	require.Empty(t, actions)
}

func TestProvideInputIsUnrestrictedForResolvedActors(t *testing.T) {
	store := newFakeStore()
	r := resolverWith(store)
	ctx := context.Background()

	entity := &models.WorkflowEntity{
		ID: 1, Kind: models.KindRequest, CurrentState: models.StateAdditionalInput,
		RaisedBy: "alice", AssignedTo: "bob",
	}

	// Either party, or any other resolved identity, may supply the
	// requested information.
	for _, actor := range []string{"alice", "bob", "mallory"} {
		actions, err := r.PossibleActions(ctx, entity, actor)
		require.NoError(t, err)
		require.True(t, actions.Has(models.ActionProvideInput), "actor %s", actor)
	}

	// An unresolved identity gets nothing.
	actions, err := r.PossibleActions(ctx, entity, "")
	require.NoError(t, err)
	require.Empty(t, actions)
}

func TestPossibleActionsTenderIssuer(t *testing.T) {
	store := newFakeStore()
	r := resolverWith(store)
	ctx := context.Background()

	entity := &models.WorkflowEntity{
		ID: 10, Kind: models.KindTender, CurrentState: models.StateDraft,
		IssuedBy: "carol",
	}

	actions, err := r.PossibleActions(ctx, entity, "carol")
	require.NoError(t, err)
	require.ElementsMatch(t, []models.Action{
		models.ActionPublish,
		models.ActionCancel,
	}, actions.List())

	actions, err = r.PossibleActions(ctx, entity, "dave")
	require.NoError(t, err)
	require.Empty(t, actions)
}

func TestAwardRequiresAtLeastOneBid(t *testing.T) {
	store := newFakeStore()
	r := resolverWith(store)
	ctx := context.Background()

	entity := &models.WorkflowEntity{
		ID: 10, Kind: models.KindTender, CurrentState: models.StateClosed,
		IssuedBy: "carol",
	}

	actions, err := r.PossibleActions(ctx, entity, "carol")
	require.NoError(t, err)
	require.False(t, actions.Has(models.ActionAward))

	store.bids[1] = &models.Bid{ID: 1, TenderID: 10, Bidder: "north", Amount: 50_000, Status: models.BidSubmitted}
	actions, err = r.PossibleActions(ctx, entity, "carol")
	require.NoError(t, err)
	require.True(t, actions.Has(models.ActionAward))
}
