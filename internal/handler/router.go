package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/prefunding-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса префондирования.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/prefunding/{pipeline}", func(r chi.Router) {
		r.Post("/clients/{clientID}/sessions", h.StartSession)

		r.Route("/session", func(r chi.Router) {
			r.Use(h.sessionMiddleware.Middleware)

			r.Get("/", h.GetSession)
			r.Post("/verify", h.Verify)

			r.Post("/receipt", h.AttachReceipt)
			r.Delete("/receipt", h.RemoveReceipt)

			r.Post("/submit", h.Submit)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
