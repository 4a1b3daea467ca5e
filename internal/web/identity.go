package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/oskarlind/trackline/internal/db"
)

// TokenVerifier turns a bearer token into a user ID.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// VerifierFunc adapts a function to the TokenVerifier interface.
type VerifierFunc func(ctx context.Context, token string) (string, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// InstallIDVerifier treats the bearer token as an opaque per-install user
// identifier. It performs no cryptographic verification; the token only
// partitions history, it grants nothing.
func InstallIDVerifier() TokenVerifier {
	return VerifierFunc(func(_ context.Context, token string) (string, error) {
		return token, nil
	})
}

// identify resolves the request's user ID. Requests with no token, or a
// token the verifier rejects, fall back to the shared anonymous partition
// rather than being refused: history quality degrades, play continues.
func (h *Handlers) identify(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return db.AnonymousUser
	}
	userID, err := h.verifier.Verify(r.Context(), token)
	if err != nil || userID == "" {
		return db.AnonymousUser
	}
	return userID
}
