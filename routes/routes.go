package routes

import (
	"log/slog"
	"net/http"

	_ "github.com/Dosada05/tournament-engine/docs" // swagger doc registration
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handlers bundles everything the router serves.
type Handlers struct {
	Tournaments  *handlers.TournamentHandler
	Participants *handlers.ParticipantHandler
	Matches      *handlers.MatchHandler
	Brackets     *handlers.BracketHandler
	WebSocket    *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	Metrics        *metrics.Recorder
	Logger         *slog.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger, opts.Metrics))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", opts.Metrics.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	requireAdmin := middleware.RequireAdmin(opts.JWTSecret, opts.Logger)

	router.Route("/api", func(r chi.Router) {
		r.Route("/tournaments", func(r chi.Router) {
			// Публичные маршруты для просмотра турниров
			r.Get("/current", h.Tournaments.Current)
			r.Get("/{tournamentID}", h.Tournaments.GetByID)
			r.Get("/{tournamentID}/groups", h.Tournaments.ListGroups)
			r.Get("/{tournamentID}/bracket", h.Brackets.GetBracket)
			r.Get("/{tournamentID}/podium", h.Brackets.GetPodium)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Post("/", h.Tournaments.Create)
				r.Patch("/{tournamentID}/status", h.Tournaments.UpdateStatus)
				r.Post("/{tournamentID}/groups", h.Tournaments.CreateGroups)
				r.Post("/{tournamentID}/participants", h.Participants.Register)
				r.Post("/{tournamentID}/finals", h.Brackets.InitializeFinals)
				r.Put("/{tournamentID}/matches/{matchID}/advance", h.Matches.Advance)
			})
		})

		r.Route("/groups/{groupID}", func(r chi.Router) {
			r.Get("/available", h.Participants.AvailableOpponents)
			r.With(requireAdmin).Post("/matches", h.Matches.StartGroupMatch)
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", h.Matches.GetDetails)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/start", h.Matches.StartBracketMatch)
				r.Put("/sets", h.Matches.RecordGroupSet)
			})
		})

		r.With(requireAdmin).Put("/finals/matches/{matchID}/sets", h.Matches.RecordBracketSet)
	})
}
