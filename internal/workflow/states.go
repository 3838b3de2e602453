// Package workflow implements the lifecycle engine: the static transition
// tables, role-gated permission resolution, the single writer of entity state,
// and the award coordination for tenders.
package workflow

import "siteflow/models"

type transitionKey struct {
	kind   models.EntityKind
	state  models.State
	action models.Action
}

// transitionTable is the full static definition for both entity kinds. Any
// (kind, state, action) triple not present here is an invalid transition.
// The request graph is intentionally not acyclic: additional_input_required
// and revision_required both lead back to review.
var transitionTable = map[transitionKey]models.State{
	{models.KindRequest, models.StateDraft, models.ActionSubmitForReview}:            models.StateReview,
	{models.KindRequest, models.StateReview, models.ActionApprove}:                   models.StateApproved,
	{models.KindRequest, models.StateReview, models.ActionRequestAdditionalInput}:    models.StateAdditionalInput,
	{models.KindRequest, models.StateReview, models.ActionRequestRevision}:           models.StateRevisionRequired,
	{models.KindRequest, models.StateAdditionalInput, models.ActionProvideInput}:     models.StateReview,
	{models.KindRequest, models.StateRevisionRequired, models.ActionSubmitForReview}: models.StateReview,
	{models.KindRequest, models.StateApproved, models.ActionRespond}:                 models.StateResponded,
	{models.KindRequest, models.StateResponded, models.ActionClose}:                  models.StateClosed,

	{models.KindTender, models.StateDraft, models.ActionPublish}: models.StateOpen,
	{models.KindTender, models.StateOpen, models.ActionClose}:    models.StateClosed,
	{models.KindTender, models.StateClosed, models.ActionAward}:  models.StateAwarded,
	{models.KindTender, models.StateDraft, models.ActionCancel}:  models.StateCancelled,
	{models.KindTender, models.StateOpen, models.ActionCancel}:   models.StateCancelled,
}

// NextState resolves the state an action produces. ok is false when the
// action is not defined for the current state.
func NextState(kind models.EntityKind, current models.State, action models.Action) (models.State, bool) {
	next, ok := transitionTable[transitionKey{kind, current, action}]
	return next, ok
}

// ActionsFromState returns every action the definition allows from the given
// state, before any permission filtering.
func ActionsFromState(kind models.EntityKind, current models.State) []models.Action {
	var actions []models.Action
	for key := range transitionTable {
		if key.kind == kind && key.state == current {
			actions = append(actions, key.action)
		}
	}
	return actions
}

// IsTerminal reports whether the state has no outgoing actions for the kind.
func IsTerminal(kind models.EntityKind, state models.State) bool {
	return len(ActionsFromState(kind, state)) == 0
}

// InitialState is the state every entity is created in.
func InitialState() models.State { return models.StateDraft }
