package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	profileHandler "github.com/zhouzirui/profile-service/backend/internal/handler/profile"
	watchHandler "github.com/zhouzirui/profile-service/backend/internal/handler/watch"
	"github.com/zhouzirui/profile-service/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/profile-service/backend/internal/middleware"
	"github.com/zhouzirui/profile-service/backend/internal/model/profile"
	"github.com/zhouzirui/profile-service/backend/internal/service/watch"
	"github.com/zhouzirui/profile-service/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. hub and collector may be nil,
// in which case the change feed and /metrics are not registered.
func NewRouter(store profile.Store, hub *watch.Hub, collector *metrics.Collector, corsOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(corsOrigin))

	var recorder profileHandler.Recorder
	if collector != nil {
		r.Use(collector.Middleware)
		r.Method(http.MethodGet, "/metrics", collector.Handler())
		recorder = collector
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	profiles := profileHandler.New(store, recorder)

	r.Route("/api", func(api chi.Router) {
		profiles.RegisterRoutes(api)

		if hub != nil {
			watchHandler.New(hub).RegisterRoutes(api)
		}
	})

	return r
}
