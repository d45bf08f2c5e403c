package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"goflare.io/pace/internal/models"
)

type parlayRequest struct {
	Name string `json:"name"`
}

type orderRequest struct {
	IDs []string `json:"ids"`
}

type legRequest struct {
	PlayerID    string  `json:"playerId"`
	PlayerName  string  `json:"playerName"`
	HeadshotURL string  `json:"headshotUrl"`
	StatType    string  `json:"statType"`
	Target      float64 `json:"target"`
}

type moveRequest struct {
	ParlayID string `json:"parlayId"`
	Index    int    `json:"index"`
}

type parlayProjections struct {
	ParlayID string                 `json:"parlayId"`
	Legs     []models.LegProjection `json:"legs"`
}

// ListParlays returns every parlay in display order.
func (h *Handler) ListParlays(w http.ResponseWriter, r *http.Request) {
	parlays, err := h.parlays.ListParlays(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if parlays == nil {
		parlays = []models.Parlay{}
	}
	respondJSON(w, http.StatusOK, parlays)
}

// CreateParlay appends a new empty parlay.
func (h *Handler) CreateParlay(w http.ResponseWriter, r *http.Request) {
	var req parlayRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.parlays.CreateParlay(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// GetParlay returns one parlay with its legs.
func (h *Handler) GetParlay(w http.ResponseWriter, r *http.Request) {
	p, err := h.parlays.GetParlay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// RenameParlay updates a parlay's name.
func (h *Handler) RenameParlay(w http.ResponseWriter, r *http.Request) {
	var req parlayRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.parlays.RenameParlay(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeleteParlay removes a parlay and its legs.
func (h *Handler) DeleteParlay(w http.ResponseWriter, r *http.Request) {
	if err := h.parlays.DeleteParlay(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderParlays moves the listed parlays to the front in the given order.
func (h *Handler) ReorderParlays(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.parlays.ReorderParlays(r.Context(), req.IDs); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddLeg adds a leg; an existing leg for the same player and stat is
// returned with 200 instead of 201.
func (h *Handler) AddLeg(w http.ResponseWriter, r *http.Request) {
	var req legRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	leg, created, err := h.parlays.AddLeg(r.Context(), chi.URLParam(r, "id"), models.Leg{
		PlayerID:    req.PlayerID,
		PlayerName:  req.PlayerName,
		HeadshotURL: req.HeadshotURL,
		StatType:    models.StatType(req.StatType),
		Target:      req.Target,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, leg)
}

// DeleteLeg removes one leg from a parlay.
func (h *Handler) DeleteLeg(w http.ResponseWriter, r *http.Request) {
	if err := h.parlays.DeleteLeg(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "legId")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderLegs reorders the legs within a parlay.
func (h *Handler) ReorderLegs(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.parlays.ReorderLegs(r.Context(), chi.URLParam(r, "id"), req.IDs); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveLeg moves a leg into another parlay (or within its own) at an index.
func (h *Handler) MoveLeg(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ParlayID == "" {
		h.fail(w, r, badRequest("parlayId is required"))
		return
	}
	leg, err := h.parlays.MoveLeg(r.Context(), chi.URLParam(r, "legId"), req.ParlayID, req.Index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, leg)
}

// GetParlayProjections projects every leg of a parlay. Legs that cannot be
// projected carry an error message instead of failing the request.
func (h *Handler) GetParlayProjections(w http.ResponseWriter, r *http.Request) {
	week, err := intParam(r, "week", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	legs, err := h.svc.ProjectParlay(r.Context(), id, week)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, parlayProjections{ParlayID: id, Legs: legs})
}
