package http

import (
	"context"
	"net/http"

	"pfm/internal/core"
	"pfm/internal/log"
)

// Resolver turns an Authorization header value into a user id.
type Resolver interface {
	Resolve(credential string) (core.ID, error)
}

type userKey struct{}

// requireUser rejects requests without a valid bearer token and stores the
// caller's id in the context.
func requireUser(resolver Resolver, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolver.Resolve(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pfm"`)
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, id)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, int64(id)))
		next(w, r.WithContext(ctx))
	}
}

// callerID returns the authenticated user. Only valid behind requireUser.
func callerID(r *http.Request) core.ID {
	id, _ := r.Context().Value(userKey{}).(core.ID)
	return id
}
