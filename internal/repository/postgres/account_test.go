package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/testutil"
)

func Test_AccountRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create account ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}

			account, err := r.Create(t.Context(), testutil.NewAccount("alice"))

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, account.ID)
			assert.Equal(t, "alice", account.Username)
			assert.Equal(t, "avatars/alice", account.Avatar.ID)
			assert.True(t, account.CoverImage.IsZero())
			assert.Empty(t, account.RefreshToken)
			assert.WithinDuration(t, time.Now(), account.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create fail if username taken", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			_, err := r.Create(t.Context(), testutil.NewAccount("alice"))
			require.NoError(t, err)

			other := testutil.NewAccount("alice")
			other.Email = "other@example.com"
			_, err = r.Create(t.Context(), other)

			require.ErrorIs(t, err, apperrors.ErrAccountAlreadyExists)
		})
	})

	t.Run("get by id ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			created, err := r.Create(t.Context(), testutil.NewAccount("alice"))
			require.NoError(t, err)

			got, err := r.GetByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get by id not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}

			_, err := r.GetByID(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrAccountNotFound, "should return well known error")
		})
	})

	t.Run("get by username or email", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			created, err := r.Create(t.Context(), testutil.NewAccount("alice"))
			require.NoError(t, err)

			byUsername, err := r.GetByUsernameOrEmail(t.Context(), "alice")
			require.NoError(t, err)
			byEmail, err := r.GetByUsernameOrEmail(t.Context(), "alice@example.com")
			require.NoError(t, err)
			_, err = r.GetByUsernameOrEmail(t.Context(), "bob")

			assert.Equal(t, created.ID, byUsername.ID)
			assert.Equal(t, created.ID, byEmail.ID)
			assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("exists by username or email", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			_, err := r.Create(t.Context(), testutil.NewAccount("alice"))
			require.NoError(t, err)

			tests := []struct {
				username string
				email    string
				expected bool
			}{
				{"alice", "new@example.com", true},
				{"bob", "alice@example.com", true},
				{"bob", "bob@example.com", false},
			}

			for _, tt := range tests {
				exists, err := r.ExistsByUsernameOrEmail(t.Context(), tt.username, tt.email)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, exists, "username=%s email=%s", tt.username, tt.email)
			}
		})
	})

	t.Run("update fields partially", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			created, err := r.Create(t.Context(), testutil.NewAccount("alice"))
			require.NoError(t, err)

			fullname := "Alice Liddell"
			cover := models.MediaObject{ID: "covers/alice", URL: "https://cdn.test/covers/alice"}
			updated, err := r.UpdateFields(t.Context(), created.ID, models.AccountUpdate{Fullname: &fullname, CoverImage: &cover})

			require.NoError(t, err)
			assert.Equal(t, "Alice Liddell", updated.Fullname)
			assert.Equal(t, cover, updated.CoverImage)
			assert.Equal(t, created.Email, updated.Email, "email untouched")
			assert.Equal(t, created.Avatar, updated.Avatar, "avatar untouched")
			assert.Equal(t, created.PasswordHash, updated.PasswordHash, "password untouched")
		})
	})

	t.Run("swap fields returns previous state", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			created, err := r.Create(t.Context(), testutil.NewAccount("alice"))
			require.NoError(t, err)

			avatar := models.MediaObject{ID: "avatars/new", URL: "https://cdn.test/avatars/new"}
			updated, previous, err := r.SwapFields(t.Context(), created.ID, models.AccountUpdate{Avatar: &avatar})

			require.NoError(t, err)
			assert.Equal(t, avatar, updated.Avatar)
			assert.Equal(t, created.Avatar, previous.Avatar)
		})
	})

	t.Run("swap fields not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			avatar := models.MediaObject{ID: "avatars/new", URL: "https://cdn.test/avatars/new"}

			_, _, err := r.SwapFields(t.Context(), uuid.New(), models.AccountUpdate{Avatar: &avatar})

			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("concurrent swaps see each other", func(t *testing.T) {
		// Committed data: every swap runs in its own transaction
		r := AccountRepo{DB: pg.Pool}
		created, err := r.Create(t.Context(), testutil.NewAccount("swapper"))
		require.NoError(t, err)
		t.Cleanup(func() {
			_, err := pg.Pool.Exec(context.Background(), "DELETE FROM accounts WHERE id = $1", created.ID)
			require.NoError(t, err)
		})

		const swaps = 8
		previous := make([]string, swaps)
		var wg sync.WaitGroup
		for i := range swaps {
			wg.Add(1)
			go func() {
				defer wg.Done()
				avatar := models.MediaObject{ID: fmt.Sprintf("avatars/%d", i), URL: "https://cdn.test/avatars"}
				_, prev, err := r.SwapFields(t.Context(), created.ID, models.AccountUpdate{Avatar: &avatar})
				assert.NoError(t, err)
				previous[i] = prev.Avatar.ID
			}()
		}
		wg.Wait()

		final, err := r.GetByID(t.Context(), created.ID)
		require.NoError(t, err)

		// Each avatar is replaced exactly once: previous ids plus the final one are all distinct
		seen := map[string]bool{final.Avatar.ID: true}
		for _, id := range previous {
			require.False(t, seen[id], "avatar %s replaced twice", id)
			seen[id] = true
		}
		require.True(t, seen[created.Avatar.ID], "initial avatar replaced once")
	})

	t.Run("update fields not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			fullname := "Nobody"

			_, err := r.UpdateFields(t.Context(), uuid.New(), models.AccountUpdate{Fullname: &fullname})

			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("update email taken", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			_, err := r.Create(t.Context(), testutil.NewAccount("alice"))
			require.NoError(t, err)
			bob, err := r.Create(t.Context(), testutil.NewAccount("bob"))
			require.NoError(t, err)

			email := "alice@example.com"
			_, err = r.UpdateFields(t.Context(), bob.ID, models.AccountUpdate{Email: &email})

			require.ErrorIs(t, err, apperrors.ErrAccountAlreadyExists)
		})
	})

	t.Run("save writes all fields", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			account, err := r.Create(t.Context(), testutil.NewAccount("alice"))
			require.NoError(t, err)

			account.Fullname = "Alice Liddell"
			account.RefreshToken = "refresh-value"
			saved, err := r.Save(t.Context(), account)

			require.NoError(t, err)
			assert.Equal(t, "Alice Liddell", saved.Fullname)
			assert.Equal(t, "refresh-value", saved.RefreshToken)
		})
	})

	t.Run("set and clear refresh token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			account, err := r.Create(t.Context(), testutil.NewAccount("alice"))
			require.NoError(t, err)

			err = r.SetRefreshToken(t.Context(), account.ID, "first")
			require.NoError(t, err)
			err = r.SetRefreshToken(t.Context(), account.ID, "second")
			require.NoError(t, err)
			got, err := r.GetByID(t.Context(), account.ID)
			require.NoError(t, err)
			assert.Equal(t, "second", got.RefreshToken, "last write wins")

			err = r.SetRefreshToken(t.Context(), account.ID, "")
			require.NoError(t, err)
			got, err = r.GetByID(t.Context(), account.ID)
			require.NoError(t, err)
			assert.Empty(t, got.RefreshToken)
		})
	})

	t.Run("set refresh token not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}

			err := r.SetRefreshToken(t.Context(), uuid.New(), "token")

			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})
}
