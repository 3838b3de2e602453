package workflow

import (
	"context"
	"fmt"

	"siteflow/models"
)

// ActionSet is the set of actions an actor may currently invoke.
type ActionSet map[models.Action]bool

func (s ActionSet) Has(a models.Action) bool { return s[a] }

// Sorted-free list form for JSON responses.
func (s ActionSet) List() []models.Action {
	out := make([]models.Action, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	return out
}

// BidLister is the slice of the store the resolver needs: award requires at
// least one bid to exist.
type BidLister interface {
	ListBidsForTender(ctx context.Context, tenderID int) ([]models.Bid, error)
}

// Resolver computes the actions an actor may invoke against an entity: the
// intersection of the state machine's possible actions with the role-ownership
// rules. An empty set for an unknown or unrelated actor is a normal result,
// not an error.
type Resolver struct {
	bids BidLister
}

func NewResolver(bids BidLister) *Resolver {
	return &Resolver{bids: bids}
}

// PossibleActions resolves the permitted action set for the actor. Callers
// must check membership before invoking the executor.
func (r *Resolver) PossibleActions(ctx context.Context, entity *models.WorkflowEntity, actorID string) (ActionSet, error) {
	allowed := ActionSet{}
	if actorID == "" {
		return allowed, nil
	}

	for _, action := range ActionsFromState(entity.Kind, entity.CurrentState) {
		ok, err := r.permitted(ctx, entity, actorID, action)
		if err != nil {
			return nil, err
		}
		if ok {
			allowed[action] = true
		}
	}
	return allowed, nil
}

func (r *Resolver) permitted(ctx context.Context, entity *models.WorkflowEntity, actorID string, action models.Action) (bool, error) {
	if entity.Kind == models.KindTender {
		return r.permittedTender(ctx, entity, actorID, action)
	}
	return permittedRequest(entity, actorID, action), nil
}

func permittedRequest(entity *models.WorkflowEntity, actorID string, action models.Action) bool {
	switch action {
	case models.ActionSubmitForReview, models.ActionClose:
		return actorID == entity.RaisedBy
	case models.ActionApprove, models.ActionRequestAdditionalInput, models.ActionRequestRevision, models.ActionRespond:
		return actorID == entity.AssignedTo
	case models.ActionProvideInput:
		// Either party may plausibly hold the requested information; no
		// actor restriction is applied for resolved identities.
		return true
	}
	return false
}

func (r *Resolver) permittedTender(ctx context.Context, entity *models.WorkflowEntity, actorID string, action models.Action) (bool, error) {
	if actorID != entity.IssuedBy {
		return false, nil
	}
	if action != models.ActionAward {
		return true, nil
	}
	bids, err := r.bids.ListBidsForTender(ctx, entity.ID)
	if err != nil {
		return false, fmt.Errorf("list bids for tender %d: %w", entity.ID, err)
	}
	return len(bids) > 0, nil
}
