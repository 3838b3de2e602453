package workflow

import "siteflow/models"

// Canonical display orderings. Progress is index/(len-1)*100 over these fixed
// lists. The request graph has back-edges into review, so a forward-moving
// action can display flat or backward progress; this mirrors the observed
// product behavior and is deliberately not corrected here.
var progressOrder = map[models.EntityKind][]models.State{
	models.KindRequest: {
		models.StateDraft,
		models.StateReview,
		models.StateAdditionalInput,
		models.StateRevisionRequired,
		models.StateApproved,
		models.StateResponded,
		models.StateClosed,
	},
	models.KindTender: {
		models.StateDraft,
		models.StateOpen,
		models.StateClosed,
		models.StateAwarded,
		models.StateCancelled,
	},
}

// Progress derives a completion percentage from the current state. Display
// aid only; never used for correctness.
func Progress(entity *models.WorkflowEntity) int {
	order := progressOrder[entity.Kind]
	for i, s := range order {
		if s == entity.CurrentState {
			return i * 100 / (len(order) - 1)
		}
	}
	return 0
}
