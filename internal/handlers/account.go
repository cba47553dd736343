package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/service/account"
)

type profileResponse struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Fullname   string    `json:"fullname"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"cover_image,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newProfileResponse(p models.Profile) profileResponse {
	return profileResponse{
		ID:         p.ID,
		Username:   p.Username,
		Email:      p.Email,
		Fullname:   p.Fullname,
		Avatar:     p.Avatar.URL,
		CoverImage: p.CoverImage.URL,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// Multipart form: username, email, fullname, password, avatar file and optional coverImage file
func handleRegister(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanup, ok := parseMultipart(w, r)
		defer cleanup()
		if !ok {
			return
		}

		avatar, closeAvatar, err := formFile(r, "avatar")
		defer closeAvatar()
		if err != nil {
			render.ServiceError(w, "Invalid avatar file", http.StatusBadRequest)
			return
		}

		cover, closeCover, err := formFile(r, "coverImage")
		defer closeCover()
		if err != nil {
			render.ServiceError(w, "Invalid cover image file", http.StatusBadRequest)
			return
		}

		profile, err := accountService.Register(r.Context(), account.RegisterParams{
			Username:   r.FormValue("username"),
			Email:      r.FormValue("email"),
			Fullname:   r.FormValue("fullname"),
			Password:   r.FormValue("password"),
			Avatar:     avatar,
			CoverImage: cover,
		})
		if err != nil {
			renderError(w, r, l, "Failed to register account", err)
			return
		}

		render.Created(w, newProfileResponse(profile))
	})
}

func handleCurrentUser(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		profile, err := accountService.Profile(r.Context(), acc.ID)
		if err != nil {
			renderError(w, r, l, "Failed to get profile", err)
			return
		}

		render.JSON(w, newProfileResponse(profile))
	})
}

func handleUpdateAccount(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		Fullname string `json:"fullname" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		profile, err := accountService.UpdateDetails(r.Context(), acc.ID, data.Fullname, data.Email)
		if err != nil {
			renderError(w, r, l, "Failed to update account", err)
			return
		}

		render.JSON(w, newProfileResponse(profile))
	})
}

type replaceFunc func(ctx context.Context, accountID uuid.UUID, u models.Upload) (models.Profile, error)

// Replace single media field of the account from multipart file
func handleReplaceMedia(field string, missing string, replace replaceFunc, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		cleanup, ok := parseMultipart(w, r)
		defer cleanup()
		if !ok {
			return
		}

		upload, closeFile, err := formFile(r, field)
		defer closeFile()
		if err != nil || upload == nil {
			render.ServiceError(w, missing, http.StatusBadRequest)
			return
		}

		profile, err := replace(r.Context(), acc.ID, *upload)
		if err != nil {
			renderError(w, r, l, "Failed to update "+field, err)
			return
		}

		render.JSON(w, newProfileResponse(profile))
	})
}

func handleUpdateAvatar(accountService accountService, l logger.Logger) http.Handler {
	return handleReplaceMedia("avatar", "Avatar file is missing", accountService.UpdateAvatar, l)
}

func handleUpdateCoverImage(accountService accountService, l logger.Logger) http.Handler {
	return handleReplaceMedia("coverImage", "Cover image file is missing", accountService.UpdateCoverImage, l)
}
