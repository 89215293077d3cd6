package dashboard

import (
	"context"
	"net/http"
	"strings"

	"github.com/ecoscope/ecoscope/internal/platform/httpx"
	"github.com/ecoscope/ecoscope/internal/session"
)

type contextKey struct{}

// requireSession rejects requests unless the controller is Authenticated and
// stores the session profile in the request context.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := h.controller.State()
		if st.Kind != session.Authenticated || st.Profile == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", session.ReasonNotSignedIn)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, *st.Profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func profileFromContext(ctx context.Context) session.Profile {
	p, _ := ctx.Value(contextKey{}).(session.Profile)
	return p
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
