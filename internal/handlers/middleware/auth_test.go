package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/models"
)

// Allow to use a function as auth service
type authFunc func(ctx context.Context, access string) (models.Account, error)

func (f authFunc) Authenticate(ctx context.Context, access string) (models.Account, error) {
	return f(ctx, access)
}

func TestAuthMiddleware_Auth(t *testing.T) {
	// Simple handler that try to get account from context
	// If ok write its username to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set account or write error to response
		account, ok := userctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(account.Username))
		require.NoError(t, err, "should write username to response")
	})

	// Accepts only 'good-token'
	middleware := AuthMiddleware(authFunc(func(_ context.Context, access string) (models.Account, error) {
		if access != "good-token" {
			return models.Account{}, apperrors.Unauthorized("Unauthorized request", apperrors.ErrTokenInvalid)
		}
		return models.Account{Username: "test-user"}, nil
	}))

	srv := httptest.NewServer(middleware(handler))
	defer srv.Close()

	tests := []struct {
		name           string
		prepare        func(r *http.Request)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "bearer header ok",
			prepare:        func(r *http.Request) { r.Header.Set("Authorization", "Bearer good-token") },
			expectedStatus: http.StatusOK,
			expectedBody:   "test-user",
		},
		{
			name:           "cookie ok",
			prepare:        func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good-token"}) },
			expectedStatus: http.StatusOK,
			expectedBody:   "test-user",
		},
		{
			name:           "no token",
			prepare:        func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error": "service_error", "message": "Unauthorized request"}`,
		},
		{
			name:           "bad token",
			prepare:        func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad-token") },
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error": "service_error", "message": "Unauthorized request"}`,
		},
		{
			name: "not bearer header ignores cookie",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good-token"})
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error": "service_error", "message": "Unauthorized request"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/test", nil)
			require.NoError(t, err)
			tc.prepare(req)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err, "should make request to test server")
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "should read response body")
			defer resp.Body.Close() // nolint:errcheck

			require.Equalf(t, tc.expectedStatus, resp.StatusCode, "unexpected status. Resp: %s", string(body))
			if tc.expectedStatus == http.StatusOK {
				require.Equal(t, tc.expectedBody, string(body))
			} else {
				require.JSONEq(t, tc.expectedBody, string(body))
			}
		})
	}
}
