package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nmorales/voicedesk/internal/handler/dashboard"
	"github.com/nmorales/voicedesk/internal/handler/voice"
	middlewarePkg "github.com/nmorales/voicedesk/internal/middleware"
	"github.com/nmorales/voicedesk/internal/notify"
	callsvc "github.com/nmorales/voicedesk/internal/service/call"
	routersvc "github.com/nmorales/voicedesk/internal/service/router"
	"github.com/nmorales/voicedesk/pkg/utils"
)

// NewRouter wires HTTP routes to the reconciliation core.
func NewRouter(core *routersvc.Router, tracker *callsvc.Tracker, hub *notify.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	voiceHandler := voice.New(core.VoiceEvents(), tracker)
	dashboardHandler := dashboard.New(core, hub)

	r.Route("/api", func(api chi.Router) {
		voiceHandler.RegisterRoutes(api)
		dashboardHandler.RegisterRoutes(api)

		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
