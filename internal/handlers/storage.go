package handlers

import (
	"context"

	"siteflow/internal/workflow"
	"siteflow/models"
)

type StorageInterface interface {
	GetEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error)

	CreateEntity(ctx context.Context, entity *models.WorkflowEntity) error
	GetEntity(ctx context.Context, id int) (*models.WorkflowEntity, error)
	ListEntities(ctx context.Context, kind models.EntityKind, limit, offset int) ([]models.WorkflowEntity, error)

	CreateBid(ctx context.Context, bid *models.Bid) error
	ListBidsForTender(ctx context.Context, tenderID int) ([]models.Bid, error)
}

// EngineInterface is the lifecycle engine facade. All state changes go
// through ExecuteAction; handlers never write entity state directly.
type EngineInterface interface {
	ExecuteAction(ctx context.Context, req workflow.ExecuteRequest) (*models.WorkflowEntity, error)
	PossibleActions(ctx context.Context, entityID int, actorID string) (workflow.ActionSet, error)
	Progress(ctx context.Context, entityID int) (int, error)
	History(ctx context.Context, entityID int) ([]models.TransitionRecord, error)
}
