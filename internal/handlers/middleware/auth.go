package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/models"
)

// Cookie names the tokens are sent in
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type authService interface {
	Authenticate(ctx context.Context, access string) (models.Account, error)
}

// Resolve access token from Authorization header or cookie and put the account into request context
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := AccessToken(r)
			if token == "" {
				render.ServiceError(w, "Unauthorized request", http.StatusUnauthorized)
				return
			}

			account, err := as.Authenticate(r.Context(), token)
			if err != nil {
				render.Error(w, err)
				return
			}

			ctx := userctx.New(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Access token of the request, header wins over cookie
func AccessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}
