package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/handlers/middleware"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/ratelimit"
	"github.com/nkiryanov/videotube/internal/service/account"
	"github.com/nkiryanov/videotube/internal/service/video"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Config struct {
	// Set Secure flag on token cookies
	SecureCookies bool

	// Limits login attempts per client, no limit if nil
	LoginLimiter ratelimit.Limiter
}

func NewRouter(
	cfg Config,
	authService authService,
	accountService accountService,
	videoService videoService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	withLoginLimit := func(h http.Handler) http.Handler { return h }
	if cfg.LoginLimiter != nil {
		withLoginLimit = middleware.RateLimitMiddleware(cfg.LoginLimiter, "login", logger)
	}

	cookies := tokenCookies{secure: cfg.SecureCookies}

	users := http.NewServeMux()

	users.Handle("POST /register", handleRegister(accountService, logger))
	users.Handle("POST /login", withLoginLimit(handleLogin(authService, cookies, logger)))
	users.Handle("POST /refresh-token", handleRefreshToken(authService, cookies, logger))

	users.Handle("POST /logout", withAuth(handleLogout(authService, cookies, logger)))
	users.Handle("POST /change-password", withAuth(handleChangePassword(authService, logger)))
	users.Handle("GET /current-user", withAuth(handleCurrentUser(accountService, logger)))
	users.Handle("PATCH /update-account", withAuth(handleUpdateAccount(accountService, logger)))
	users.Handle("PATCH /avatar", withAuth(handleUpdateAvatar(accountService, logger)))
	users.Handle("PATCH /cover-image", withAuth(handleUpdateCoverImage(accountService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/v1/users/", http.StripPrefix("/api/v1/users", users))

	root.Handle("POST /api/v1/videos", withAuth(handlePublishVideo(videoService, logger)))
	root.Handle("GET /api/v1/videos/{videoId}", withAuth(handleGetVideo(videoService, logger)))
	root.Handle("PATCH /api/v1/videos/{videoId}", withAuth(handleUpdateVideo(videoService, logger)))
	root.Handle("DELETE /api/v1/videos/{videoId}", withAuth(handleDeleteVideo(videoService, logger)))
	root.Handle("PATCH /api/v1/videos/toggle/publish/{videoId}", withAuth(handleTogglePublish(videoService, logger)))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Login with username or email, previous session of the account is revoked
	Login(ctx context.Context, identifier string, password string) (models.Profile, models.TokenPair, error)

	// Revoke refresh token of the account
	Logout(ctx context.Context, accountID uuid.UUID) error

	// Exchange refresh token for a new pair
	// Has to return apperrors.ErrUnauthorized for any rejected token
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	ChangePassword(ctx context.Context, accountID uuid.UUID, oldPassword string, newPassword string) error

	// Resolve access token into account
	Authenticate(ctx context.Context, access string) (models.Account, error)
}

type accountService interface {
	Register(ctx context.Context, p account.RegisterParams) (models.Profile, error)
	Profile(ctx context.Context, accountID uuid.UUID) (models.Profile, error)
	UpdateDetails(ctx context.Context, accountID uuid.UUID, fullname string, email string) (models.Profile, error)
	UpdateAvatar(ctx context.Context, accountID uuid.UUID, u models.Upload) (models.Profile, error)
	UpdateCoverImage(ctx context.Context, accountID uuid.UUID, u models.Upload) (models.Profile, error)
}

type videoService interface {
	Publish(ctx context.Context, ownerID uuid.UUID, p video.PublishParams) (models.Video, error)
	Get(ctx context.Context, videoID uuid.UUID) (models.Video, error)
	Update(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID, p video.UpdateParams) (models.Video, error)
	TogglePublish(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID) (models.Video, error)
	Delete(ctx context.Context, ownerID uuid.UUID, videoID uuid.UUID) (video.DeleteResult, error)
}
