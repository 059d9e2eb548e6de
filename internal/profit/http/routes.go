package profithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes attaches the engine endpoints to the router. Mutating endpoints
// carry a per-IP rate limit; a misbehaving scheduler retry loop must not stack
// concurrent batch runs.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/run", h.handleRun)
		r.Post("/enqueue", h.handleEnqueue)
		r.Put("/clients/{clientID}/cost-settings", h.handlePutSettings)
	})
	r.Get("/daily", h.handleDaily)
	r.Get("/monthly", h.handleMonthly)
	r.Get("/attribution", h.handleAttribution)
	r.Get("/clients/{clientID}/cost-settings", h.handleGetSettings)
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
