package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"siteflow/models"
)

// Store is the persistence surface the engine writes through. The entity's
// current_state column and the transitions table are owned exclusively by the
// executor; nothing else writes them.
type Store interface {
	AwardStore

	GetEntity(ctx context.Context, id int) (*models.WorkflowEntity, error)

	// ApplyTransition atomically appends the transition record and moves the
	// entity's current_state from rec.FromState to rec.ToState. It returns
	// applied=false, with nothing persisted, when the entity's state no
	// longer equals rec.FromState at write time.
	ApplyTransition(ctx context.Context, rec *models.TransitionRecord) (applied bool, err error)

	History(ctx context.Context, entityID int) ([]models.TransitionRecord, error)
}

// Dispatcher receives state-entered events after a transition commits. The
// call must not block and its outcome never affects the committed transition.
type Dispatcher interface {
	StateEntered(entity *models.WorkflowEntity, rec *models.TransitionRecord)
}

// ExecuteRequest carries one action attempt. WinningBidID is consulted only
// for the tender award action.
type ExecuteRequest struct {
	EntityID     int
	Action       models.Action
	Actor        string
	Notes        string
	WinningBidID int
}

// Executor validates an action against the transition table and the permission
// resolver, then commits it with an optimistic-concurrency guard. It is the
// only writer of entity state.
type Executor struct {
	store      Store
	resolver   *Resolver
	awards     *AwardCoordinator
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewExecutor(store Store, resolver *Resolver, awards *AwardCoordinator, dispatcher Dispatcher, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:      store,
		resolver:   resolver,
		awards:     awards,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Execute runs one action end to end. On success the returned entity carries
// the new state. A nil entity means nothing was persisted. The one exception
// to that rule is ErrAwardReconciliationRequired: the tender is returned in
// its committed awarded state and bid-side consistency converges in the
// background.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (*models.WorkflowEntity, error) {
	entity, err := e.store.GetEntity(ctx, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("load entity %d: %w", req.EntityID, err)
	}
	current := entity.CurrentState

	next, ok := NextState(entity.Kind, current, req.Action)
	if !ok {
		return nil, fmt.Errorf("%w: action %q is not defined for %s in state %q",
			ErrInvalidTransition, req.Action, entity.Kind, current)
	}

	allowed, err := e.resolver.PossibleActions(ctx, entity, req.Actor)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions for %q: %w", req.Actor, err)
	}
	if !allowed.Has(req.Action) {
		return nil, fmt.Errorf("%w: actor %q may not %q in state %q",
			ErrPermissionDenied, req.Actor, req.Action, current)
	}

	// The award target is checked before the transition commits so a bad
	// winning-bid id cannot leave a tender awarded with nothing accepted.
	var winner *models.Bid
	if req.Action == models.ActionAward {
		winner, err = e.awards.validateWinner(ctx, entity.ID, req.WinningBidID)
		if err != nil {
			return nil, err
		}
	}

	rec := &models.TransitionRecord{
		ID:        uuid.NewString(),
		EntityID:  entity.ID,
		FromState: current,
		ToState:   next,
		Action:    req.Action,
		ActorID:   req.Actor,
		Notes:     req.Notes,
	}
	applied, err := e.store.ApplyTransition(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("apply transition %s->%s on entity %d: %w", current, next, entity.ID, err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: entity %d left state %q during execution",
			ErrConcurrentModification, entity.ID, current)
	}
	entity.CurrentState = next

	var awardErr error
	if req.Action == models.ActionAward {
		if awardErr = e.awards.Award(ctx, entity.ID, winner.ID); awardErr != nil {
			// The tender is authoritatively awarded; the sibling rejection
			// replays until it converges.
			e.logger.Warn("award left pending reconciliation",
				"tender_id", entity.ID,
				"winning_bid_id", winner.ID,
				"error", awardErr)
			awardErr = fmt.Errorf("%w: tender %d, winning bid %d",
				ErrAwardReconciliationRequired, entity.ID, winner.ID)
		} else {
			entity.AwardedTo = winner.Bidder
		}
	}

	if e.dispatcher != nil {
		e.dispatcher.StateEntered(entity, rec)
	}

	e.logger.Info("transition applied",
		"entity_id", entity.ID,
		"kind", entity.Kind,
		"action", req.Action,
		"from", current,
		"to", next,
		"actor", req.Actor)

	return entity, awardErr
}
