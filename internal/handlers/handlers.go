package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"siteflow/models"
)

var validate = validator.New()

// Handler exposes the engine and storage over HTTP.
type Handler struct {
	Store  StorageInterface
	Engine EngineInterface
	Logger *slog.Logger
}

func NewHandler(store StorageInterface, engine EngineInterface, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Engine: engine, Logger: logger}
}

// PingHandler answers "ok" for liveness checks.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// CreateRequestHandler handles POST /api/requests/new. The entity starts in
// draft; the authenticated username becomes the raiser.
func (h *Handler) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	h.createEntity(w, r, models.KindRequest)
}

// CreateTenderHandler handles POST /api/tenders/new. The entity starts in
// draft; the authenticated username becomes the issuer.
func (h *Handler) CreateTenderHandler(w http.ResponseWriter, r *http.Request) {
	h.createEntity(w, r, models.KindTender)
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request, kind models.EntityKind) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "Missing username parameter", http.StatusBadRequest)
		return
	}
	if _, err := h.Store.GetEmployeeByUsername(r.Context(), username); err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var entity models.WorkflowEntity
	if err := json.Unmarshal(body, &entity); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	entity.Kind = kind
	entity.CurrentState = models.StateDraft
	if kind == models.KindTender {
		entity.IssuedBy = username
		entity.RaisedBy = ""
		entity.AssignedTo = ""
		entity.AwardedTo = ""
	} else {
		entity.RaisedBy = username
		entity.IssuedBy = ""
		entity.AwardedTo = ""
	}

	if err := validate.Struct(&entity); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Store.CreateEntity(r.Context(), &entity); err != nil {
		h.Logger.Error("create entity", "kind", kind, "error", err)
		http.Error(w, "Failed to create entity", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(entity)
}

// ListEntitiesHandler handles GET /api/requests and GET /api/tenders.
func (h *Handler) ListEntitiesHandler(kind models.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := parsePaginationParams(r)
		entities, err := h.Store.ListEntities(r.Context(), kind, params.Limit, params.Offset)
		if err != nil {
			http.Error(w, "Failed to list entities", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entities)
	}
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams reads limit and offset from the query, with defaults
// and caps.
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: 5, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}
