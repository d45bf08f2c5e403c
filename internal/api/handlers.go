package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/prewarm"
)

type healthResponse struct {
	Status  string              `json:"status"`
	Time    time.Time           `json:"time"`
	Cache   models.CacheStats   `json:"cache"`
	Prewarm *prewarm.RunSummary `json:"prewarm"`
}

// Health reports cache counters and the last pre-warm pass.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Time:   time.Now().UTC(),
		Cache:  h.svc.CacheStats(),
	}
	if last, ok := h.svc.LastPrewarm(); ok {
		resp.Prewarm = &last
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetPlayerStats returns the stat record for an ESPN athlete id.
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.fail(w, r, badRequest("player id is required"))
		return
	}
	stats, err := h.svc.PlayerStats(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetRoster passes the bulk roster through untouched.
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	raw, err := h.svc.Roster(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// GetScores returns completed games per team through the given week.
func (h *Handler) GetScores(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		h.fail(w, r, badRequest("week must be an integer"))
		return
	}
	board, err := h.svc.Scoreboard(r.Context(), week)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, board)
}

type stateResponse struct {
	models.NFLState
	CurrentWeek int `json:"currentWeek"`
}

// GetState returns the provider's season clock.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.State(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stateResponse{NFLState: state, CurrentWeek: state.CurrentWeek()})
}

type projectionResponse struct {
	PlayerID string          `json:"playerId"`
	StatType models.StatType `json:"statType"`
	models.PaceProjection
}

// GetProjection projects a single leg:
// /projection?player={id}&stat={statType}&target={n}[&week={w}]
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	player := strings.TrimSpace(q.Get("player"))
	if player == "" {
		h.fail(w, r, badRequest("player is required"))
		return
	}
	statType, err := models.ParseStatType(q.Get("stat"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	target, err := strconv.ParseFloat(q.Get("target"), 64)
	if err != nil {
		h.fail(w, r, badRequest("target must be a number"))
		return
	}
	week, err := intParam(r, "week", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	proj, err := h.svc.ProjectLeg(r.Context(), player, statType, target, week)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projectionResponse{PlayerID: player, StatType: statType, PaceProjection: proj})
}

// SearchPlayers matches roster names: /players?q={text}[&limit={n}]
func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	players, err := h.svc.SearchPlayers(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, players)
}
