package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"siteflow/models"
)

// CreateBidHandler handles POST /api/bids/new. Bids may only be submitted
// while the tender is open; the bid enters the family as "submitted" and is
// resolved to accepted/rejected by the award.
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
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

	var bid models.Bid
	if err := json.Unmarshal(body, &bid); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	bid.Bidder = username
	bid.Status = models.BidSubmitted
	bid.ComputeOverall()

	if err := validate.Struct(&bid); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tender, err := h.Store.GetEntity(r.Context(), bid.TenderID)
	if err != nil {
		http.Error(w, "Tender not found", http.StatusNotFound)
		return
	}
	if tender.Kind != models.KindTender {
		http.Error(w, "Entity is not a tender", http.StatusBadRequest)
		return
	}
	if tender.CurrentState != models.StateOpen {
		http.Error(w, "Tender is not open for bids", http.StatusConflict)
		return
	}

	if err := h.Store.CreateBid(r.Context(), &bid); err != nil {
		h.Logger.Error("create bid", "tender_id", bid.TenderID, "error", err)
		http.Error(w, "Failed to create bid", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(bid)
}

// GetBidsForTenderHandler handles GET /api/tenders/{tenderId}/bids. The
// issuer sees the whole family; everyone else only their own bids.
func (h *Handler) GetBidsForTenderHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, err := strconv.Atoi(chi.URLParam(r, "tenderId"))
	if err != nil || tenderID <= 0 {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "Missing username parameter", http.StatusBadRequest)
		return
	}

	tender, err := h.Store.GetEntity(r.Context(), tenderID)
	if err != nil {
		http.Error(w, "Tender not found", http.StatusNotFound)
		return
	}

	bids, err := h.Store.ListBidsForTender(r.Context(), tenderID)
	if err != nil {
		http.Error(w, "Failed to get bids", http.StatusInternalServerError)
		return
	}

	if username != tender.IssuedBy {
		own := bids[:0]
		for _, b := range bids {
			if b.Bidder == username {
				own = append(own, b)
			}
		}
		bids = own
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bids)
}
