package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/tessera-live/tessera/internal/domain"
)

// Authenticator resolves a presented API token to its team.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Team, error)
}

type teamKey struct{}

// TeamFrom returns the team the request authenticated as.
func TeamFrom(ctx context.Context) (domain.Team, bool) {
	t, ok := ctx.Value(teamKey{}).(domain.Team)
	return t, ok
}

// RequireToken authenticates the Authorization header and stores the
// resolved team in the request context. Missing or invalid credentials get
// 401; everything past this middleware is authenticated.
func RequireToken(auth Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := parseTokenHeader(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid or missing token")
			return
		}
		team, err := auth.Authenticate(r.Context(), token)
		if err != nil {
			respondError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), teamKey{}, team)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseTokenHeader(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Token") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
