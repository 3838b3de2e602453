package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"siteflow/models"
)

// Service is the engine facade consumed by the HTTP layer and the bid
// submission flow. Award is reachable only through the award action; the
// coordinator is never exposed standalone.
type Service struct {
	store    Store
	resolver *Resolver
	executor *Executor
}

func NewService(store Store, dispatcher Dispatcher, logger *slog.Logger) *Service {
	resolver := NewResolver(store)
	awards := NewAwardCoordinator(store, logger)
	return &Service{
		store:    store,
		resolver: resolver,
		executor: NewExecutor(store, resolver, awards, dispatcher, logger),
	}
}

// Awards exposes the coordinator for the background reconciliation runner.
func (s *Service) Awards() *AwardCoordinator { return s.executor.awards }

func (s *Service) ExecuteAction(ctx context.Context, req ExecuteRequest) (*models.WorkflowEntity, error) {
	return s.executor.Execute(ctx, req)
}

func (s *Service) PossibleActions(ctx context.Context, entityID int, actorID string) (ActionSet, error) {
	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("load entity %d: %w", entityID, err)
	}
	return s.resolver.PossibleActions(ctx, entity, actorID)
}

func (s *Service) Progress(ctx context.Context, entityID int) (int, error) {
	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return 0, fmt.Errorf("load entity %d: %w", entityID, err)
	}
	return Progress(entity), nil
}

func (s *Service) History(ctx context.Context, entityID int) ([]models.TransitionRecord, error) {
	return s.store.History(ctx, entityID)
}
