package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"watch-match-backend/internal/config"
	"watch-match-backend/internal/middleware"
	"watch-match-backend/internal/services"
)

// Services bundles what the HTTP layer calls into
type Services struct {
	Users   *services.UserService
	Groups  *services.GroupService
	Queue   *services.QueueService
	Matches *services.MatchService
	Ratings *services.RatingService
	Hub     *services.WSHub
}

// NewRouter builds the full HTTP API
func NewRouter(cfg *config.Config, svc Services) http.Handler {
	userHandler := NewUserHandler(svc.Users)
	groupHandler := NewGroupHandler(svc.Groups)
	queueHandler := NewQueueHandler(svc.Queue)
	swipeHandler := NewSwipeHandler(svc.Matches)
	ratingHandler := NewRatingHandler(svc.Ratings)
	wsHandler := NewWebSocketHandler(svc.Hub, svc.Users, svc.Groups)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit))

		// Public routes
		r.Post("/users", userHandler.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(svc.Users))

			r.Get("/me", userHandler.GetMe)
			r.Put("/me/push-token", userHandler.UpdatePushToken)

			r.Post("/groups", groupHandler.CreateGroup)
			r.Get("/groups", groupHandler.ListGroups)
			r.Route("/groups/{group_id}", func(r chi.Router) {
				r.Use(groupHandler.RequireMember)
				r.Get("/", groupHandler.GetGroup)
				r.Get("/queue", queueHandler.GetQueue)
				r.Post("/queue", queueHandler.AddToQueue)
				r.Post("/swipe", swipeHandler.Swipe)
				r.Get("/swipes/{kind}/{item_id}", swipeHandler.GetSwipes)
				r.Get("/matches", swipeHandler.GetMatches)
			})

			r.Post("/ratings", ratingHandler.Rate)
			r.Get("/ratings", ratingHandler.ListRatings)
			r.Get("/feed", ratingHandler.Feed)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}
