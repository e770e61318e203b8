package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the item routes mounted.
// sseHandler, if non-nil, is served at GET /events behind the same auth.
func NewRouter(store ItemStore, authEnabled bool, token string, sseHandler http.Handler, opts ...HandlerOption) chi.Router {
	h := NewHandler(store, opts...)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Post("/", h.CreateItem)
		r.Get("/{id}", h.GetItem)
		r.Put("/{id}", h.UpdateItem)
		r.Delete("/{id}", h.DeleteItem)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
