package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"pfm/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m := NewMiddleware(log.Nop(), nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request id %q is not a UUID: %v", seen, err)
	}
	if got := rr.Header().Get(HeaderRequestID); got != seen {
		t.Fatalf("response header = %q, context = %q", got, seen)
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Fatalf("TotalRequests = %d", got)
	}
}

func TestMiddlewareReusesIncomingID(t *testing.T) {
	m := NewMiddleware(log.Nop(), nil)
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	id := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, id)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Header().Get(HeaderRequestID) != id {
		t.Fatal("a valid incoming id should be propagated")
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "<script>")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Header().Get(HeaderRequestID) == "<script>" {
		t.Fatal("an invalid incoming id must be replaced")
	}
}
