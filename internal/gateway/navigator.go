package gateway

import (
	"context"
	"net/http"
	"sync"
)

type redirectKey struct{}

type redirectSlot struct {
	mu   sync.Mutex
	path string
}

// Navigator records RedirectTo calls in the request context so the handler
// that triggered them can answer with a redirect.
type Navigator struct{}

func (Navigator) RedirectTo(ctx context.Context, path string) {
	slot, ok := ctx.Value(redirectKey{}).(*redirectSlot)
	if !ok {
		return
	}
	slot.mu.Lock()
	slot.path = path
	slot.mu.Unlock()
}

func withRedirectSlot(ctx context.Context) (context.Context, *redirectSlot) {
	slot := &redirectSlot{}
	return context.WithValue(ctx, redirectKey{}, slot), slot
}

func (s *redirectSlot) target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func redirectSlotMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := withRedirectSlot(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func redirectTarget(ctx context.Context) string {
	if slot, ok := ctx.Value(redirectKey{}).(*redirectSlot); ok {
		return slot.target()
	}
	return ""
}
