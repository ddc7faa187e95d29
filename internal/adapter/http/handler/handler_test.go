package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/yieldledger/internal/domain"
)

// withRoute attaches chi URL params to the request.
func withRoute(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func asActor(r *http.Request, id string, admin bool) *http.Request {
	return r.WithContext(domain.ContextWithActor(r.Context(), domain.Actor{ID: id, IsAdmin: admin}))
}
