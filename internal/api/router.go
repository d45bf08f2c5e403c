package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/prewarm"
	"goflare.io/pace/internal/store"
)

// Service is everything the HTTP surface reads from; *pace.Pace satisfies it.
type Service interface {
	PlayerStats(ctx context.Context, espnID string) (models.PlayerStats, error)
	Roster(ctx context.Context) (json.RawMessage, error)
	Scoreboard(ctx context.Context, throughWeek int) (models.Scoreboard, error)
	State(ctx context.Context) (models.NFLState, error)
	ProjectLeg(ctx context.Context, playerID string, statType models.StatType, target float64, week int) (models.PaceProjection, error)
	ProjectParlay(ctx context.Context, parlayID string, week int) ([]models.LegProjection, error)
	SearchPlayers(ctx context.Context, query string, limit int) ([]models.Player, error)
	CacheStats() models.CacheStats
	LastPrewarm() (prewarm.RunSummary, bool)
	Parlays() store.Store
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	svc     Service
	parlays store.Store
	logger  *zap.Logger
}

// NewRouter builds the chi router with every route registered.
func NewRouter(svc Service, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		svc:     svc,
		parlays: svc.Parlays(),
		logger:  logger.Named("api"),
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(opts.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Stats core
	r.Get("/stats/player/{id}", h.GetPlayerStats)
	r.Get("/roster", h.GetRoster)
	r.Get("/scores/{week}", h.GetScores)
	r.Get("/state", h.GetState)
	r.Get("/projection", h.GetProjection)
	r.Get("/players", h.SearchPlayers)

	// Parlays
	r.Route("/parlays", func(r chi.Router) {
		r.Get("/", h.ListParlays)
		r.Post("/", h.CreateParlay)
		r.Post("/order", h.ReorderParlays)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetParlay)
			r.Patch("/", h.RenameParlay)
			r.Delete("/", h.DeleteParlay)
			r.Get("/projections", h.GetParlayProjections)
			r.Post("/legs", h.AddLeg)
			r.Post("/legs/order", h.ReorderLegs)
			r.Delete("/legs/{legId}", h.DeleteLeg)
		})
	})
	r.Post("/legs/{legId}/move", h.MoveLeg)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
