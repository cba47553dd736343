package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nkiryanov/videotube/internal/handlers/middleware"
	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
)

type tokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func newTokensResponse(pair models.TokenPair) tokensResponse {
	return tokensResponse{AccessToken: pair.Access.Value, RefreshToken: pair.Refresh.Value}
}

func handleLogin(authService authService, cookies tokenCookies, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password" validate:"required"`
	}

	type response struct {
		User profileResponse `json:"user"`
		tokensResponse
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		identifier := data.Username
		if identifier == "" {
			identifier = data.Email
		}

		profile, pair, err := authService.Login(r.Context(), identifier, data.Password)
		if err != nil {
			renderError(w, r, l, "Failed to login", err)
			return
		}

		cookies.set(w, pair)
		render.JSON(w, response{User: newProfileResponse(profile), tokensResponse: newTokensResponse(pair)})
	})
}

func handleLogout(authService authService, cookies tokenCookies, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		if err := authService.Logout(r.Context(), account.ID); err != nil {
			renderError(w, r, l, "Failed to logout", err)
			return
		}

		cookies.clear(w)
		render.JSON(w, map[string]string{"message": "User logged out"})
	})
}

// Refresh token is read from cookie first, then from JSON body
func handleRefreshToken(authService authService, cookies tokenCookies, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var refresh string
		if c, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
			refresh = c.Value
		}

		if refresh == "" {
			var data request
			err := json.NewDecoder(r.Body).Decode(&data)
			if err != nil && !errors.Is(err, io.EOF) {
				render.DecodeError(w, err)
				return
			}
			refresh = data.RefreshToken
		}

		pair, err := authService.Refresh(r.Context(), refresh)
		if err != nil {
			renderError(w, r, l, "Failed to refresh tokens", err)
			return
		}

		cookies.set(w, pair)
		render.JSON(w, newTokensResponse(pair))
	})
}

func handleChangePassword(authService authService, l logger.Logger) http.Handler {
	type request struct {
		OldPassword string `json:"old_password" validate:"required"`
		NewPassword string `json:"new_password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = authService.ChangePassword(r.Context(), account.ID, data.OldPassword, data.NewPassword)
		if err != nil {
			renderError(w, r, l, "Failed to change password", err)
			return
		}

		render.JSON(w, map[string]string{"message": "Password changed successfully"})
	})
}
