package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/handlers/middleware"
	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
)

const maxMultipartMemory = 32 << 20

type tokenCookies struct {
	secure bool
}

// Set both tokens as http only cookies
func (c tokenCookies) set(w http.ResponseWriter, pair models.TokenPair) {
	access := c.cookie(middleware.AccessTokenCookie, pair.Access.Value)
	access.Expires = pair.Access.ExpiresAt
	http.SetCookie(w, access)

	refresh := c.cookie(middleware.RefreshTokenCookie, pair.Refresh.Value)
	refresh.Expires = pair.Refresh.ExpiresAt
	http.SetCookie(w, refresh)
}

func (c tokenCookies) clear(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		cookie := c.cookie(name, "")
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (c tokenCookies) cookie(name string, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Render error by its kind, log unexpected ones
func renderError(w http.ResponseWriter, r *http.Request, l logger.Logger, msg string, err error) {
	if render.StatusCode(err) >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), l).Error(msg, "error", err)
	}
	render.Error(w, err)
}

// Parse multipart body and render error if it is malformed
// Caller has to call returned cleanup
func parseMultipart(w http.ResponseWriter, r *http.Request) (func(), bool) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		render.ServiceError(w, "Invalid multipart form", http.StatusBadRequest)
		return func() {}, false
	}
	return func() { _ = r.MultipartForm.RemoveAll() }, true
}

// Open file of multipart field, nil if there is no such file
// Multipart form has to be parsed already
func formFile(r *http.Request, field string) (*models.Upload, func(), error) {
	f, hdr, err := r.FormFile(field)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return nil, func() {}, nil
	case err != nil:
		return nil, func() {}, err
	}

	return &models.Upload{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}

// Optional form value, nil if field absent
func formValue(r *http.Request, field string) *string {
	values, ok := r.MultipartForm.Value[field]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

func videoID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("videoId"))
	if err != nil {
		render.ServiceError(w, "Invalid video id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
