package main

import (
	"errors"
	"net/http"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/bracket"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/httputil"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/middleware"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/service"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// newRouter serves the health check, a read-only tournament API and, when
// webhook is set, the Telegram webhook.
func newRouter(tournaments *service.TournamentService, webhook http.Handler, webhookSecret string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/tournaments", func(w http.ResponseWriter, r *http.Request) {
			var statuses []bracket.TournamentStatus
			if s := r.URL.Query().Get("status"); s != "" {
				statuses = append(statuses, bracket.TournamentStatus(s))
			}
			list, err := tournaments.ListTournaments(r.Context(), statuses...)
			if err != nil {
				httputil.InternalServerError(w, "Failed to list tournaments", err)
				return
			}
			if list == nil {
				list = []bracket.Tournament{}
			}
			httputil.WriteJSON(w, http.StatusOK, list)
		})

		r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid tournament ID", err)
				return
			}
			data, err := tournaments.GetTournamentData(r.Context(), id)
			if errors.Is(err, store.ErrTournamentNotFound) {
				httputil.NotFound(w, "Tournament not found", err)
				return
			}
			if err != nil {
				httputil.InternalServerError(w, "Failed to load tournament", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"tournament":    data.Tournament,
				"bracket_state": data.Tournament.BracketState(),
				"teams":         data.Teams,
				"matches":       data.Matches,
			})
		})
	})

	if webhook != nil {
		r.With(middleware.RequireWebhookSecret(webhookSecret)).Post("/telegram/webhook", webhook.ServeHTTP)
	}

	return r
}
