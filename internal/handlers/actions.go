package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"siteflow/internal/workflow"
	"siteflow/models"
)

type actionBody struct {
	Notes        string `json:"notes"`
	WinningBidID int    `json:"winningBidId"`
}

// ExecuteActionHandler handles PUT /api/entities/{entityId}/action. The
// action and username arrive as query parameters; notes and the winning bid
// id (award only) in an optional JSON body.
func (h *Handler) ExecuteActionHandler(w http.ResponseWriter, r *http.Request) {
	entityID, err := strconv.Atoi(chi.URLParam(r, "entityId"))
	if err != nil || entityID <= 0 {
		http.Error(w, "Invalid entityId", http.StatusBadRequest)
		return
	}

	username := r.URL.Query().Get("username")
	actionStr := r.URL.Query().Get("action")
	if username == "" || actionStr == "" {
		http.Error(w, "Missing action or username", http.StatusBadRequest)
		return
	}
	action, err := models.ParseAction(actionStr)
	if err != nil {
		http.Error(w, "Invalid action value", http.StatusBadRequest)
		return
	}

	var body actionBody
	if r.Body != nil {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1048576))
		if err != nil {
			http.Error(w, "Cannot read body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				http.Error(w, "Invalid JSON", http.StatusBadRequest)
				return
			}
		}
	}

	entity, err := h.Engine.ExecuteAction(r.Context(), workflow.ExecuteRequest{
		EntityID:     entityID,
		Action:       action,
		Actor:        username,
		Notes:        body.Notes,
		WinningBidID: body.WinningBidID,
	})
	if err != nil && !errors.Is(err, workflow.ErrAwardReconciliationRequired) {
		h.writeWorkflowError(w, err)
		return
	}
	if err != nil {
		// The award is committed; bid-side consistency converges in the
		// background. The caller still gets the awarded tender.
		h.Logger.Warn("award pending reconciliation", "entity_id", entityID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entity)
}

// GetPossibleActionsHandler handles GET /api/entities/{entityId}/actions.
func (h *Handler) GetPossibleActionsHandler(w http.ResponseWriter, r *http.Request) {
	entityID, err := strconv.Atoi(chi.URLParam(r, "entityId"))
	if err != nil || entityID <= 0 {
		http.Error(w, "Invalid entityId", http.StatusBadRequest)
		return
	}
	username := r.URL.Query().Get("username")

	actions, err := h.Engine.PossibleActions(r.Context(), entityID, username)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"actions": actions.List()})
}

// GetProgressHandler handles GET /api/entities/{entityId}/progress.
func (h *Handler) GetProgressHandler(w http.ResponseWriter, r *http.Request) {
	entityID, err := strconv.Atoi(chi.URLParam(r, "entityId"))
	if err != nil || entityID <= 0 {
		http.Error(w, "Invalid entityId", http.StatusBadRequest)
		return
	}

	progress, err := h.Engine.Progress(r.Context(), entityID)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"progress": progress})
}

// GetHistoryHandler handles GET /api/entities/{entityId}/history.
func (h *Handler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	entityID, err := strconv.Atoi(chi.URLParam(r, "entityId"))
	if err != nil || entityID <= 0 {
		http.Error(w, "Invalid entityId", http.StatusBadRequest)
		return
	}

	history, err := h.Engine.History(r.Context(), entityID)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(history)
}

func (h *Handler) writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, workflow.ErrEntityNotFound):
		http.Error(w, "Entity not found", http.StatusNotFound)
	case errors.Is(err, workflow.ErrPermissionDenied):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, workflow.ErrInvalidTransition):
		http.Error(w, "Invalid status transition", http.StatusConflict)
	case errors.Is(err, workflow.ErrConcurrentModification):
		http.Error(w, "Entity was modified concurrently, retry", http.StatusConflict)
	case errors.Is(err, workflow.ErrNoBids),
		errors.Is(err, workflow.ErrBidNotFound),
		errors.Is(err, workflow.ErrBidAlreadyAccepted):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.Logger.Error("workflow operation failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
