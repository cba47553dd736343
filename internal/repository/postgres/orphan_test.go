package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/videotube/internal/testutil"
)

func Test_OrphanRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("add and claim due", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := OrphanRepo{DB: tx}

			err := r.Add(t.Context(), "uploads/a.png", "timeout")
			require.NoError(t, err)

			orphans, err := r.ClaimDue(t.Context(), time.Now().Add(time.Second), time.Now().Add(time.Hour), 10)

			require.NoError(t, err)
			require.Len(t, orphans, 1)
			assert.Equal(t, "uploads/a.png", orphans[0].ObjectID)
			assert.Equal(t, 0, orphans[0].Attempts)
			assert.Equal(t, "timeout", orphans[0].LastError)
		})
	})

	t.Run("add twice keeps attempts", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := OrphanRepo{DB: tx}
			require.NoError(t, r.Add(t.Context(), "uploads/a.png", "timeout"))
			require.NoError(t, r.Postpone(t.Context(), "uploads/a.png", time.Now().Add(-time.Second), "still down"))

			err := r.Add(t.Context(), "uploads/a.png", "again")
			require.NoError(t, err)

			orphans, err := r.ClaimDue(t.Context(), time.Now().Add(time.Second), time.Now().Add(time.Hour), 10)
			require.NoError(t, err)
			require.Len(t, orphans, 1)
			assert.Equal(t, 1, orphans[0].Attempts)
			assert.Equal(t, "again", orphans[0].LastError)
		})
	})

	t.Run("postponed not due", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := OrphanRepo{DB: tx}
			require.NoError(t, r.Add(t.Context(), "uploads/a.png", "timeout"))
			require.NoError(t, r.Add(t.Context(), "uploads/b.png", "timeout"))

			err := r.Postpone(t.Context(), "uploads/a.png", time.Now().Add(time.Hour), "still down")
			require.NoError(t, err)

			orphans, err := r.ClaimDue(t.Context(), time.Now().Add(time.Second), time.Now().Add(time.Hour), 10)
			require.NoError(t, err)
			require.Len(t, orphans, 1)
			assert.Equal(t, "uploads/b.png", orphans[0].ObjectID)
		})
	})

	t.Run("claim respects limit", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := OrphanRepo{DB: tx}
			for _, id := range []string{"a", "b", "c"} {
				require.NoError(t, r.Add(t.Context(), id, ""))
			}

			orphans, err := r.ClaimDue(t.Context(), time.Now().Add(time.Second), time.Now().Add(time.Hour), 2)

			require.NoError(t, err)
			require.Len(t, orphans, 2)
		})
	})

	t.Run("claimed not due until lease ends", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := OrphanRepo{DB: tx}
			require.NoError(t, r.Add(t.Context(), "uploads/a.png", "timeout"))
			now := time.Now().Add(time.Second)
			leaseUntil := now.Add(10 * time.Minute)

			first, err := r.ClaimDue(t.Context(), now, leaseUntil, 10)
			require.NoError(t, err)
			require.Len(t, first, 1)
			assert.WithinDuration(t, leaseUntil, first[0].NextAttemptAt, time.Millisecond)

			second, err := r.ClaimDue(t.Context(), now.Add(time.Minute), now.Add(time.Hour), 10)
			require.NoError(t, err)
			require.Empty(t, second, "claimed orphan must not be handed out twice")

			expired, err := r.ClaimDue(t.Context(), leaseUntil, leaseUntil.Add(10*time.Minute), 10)
			require.NoError(t, err)
			require.Len(t, expired, 1, "orphan is due again once lease ends")
			assert.Equal(t, 0, expired[0].Attempts, "claim is not an attempt")
		})
	})

	t.Run("remove", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := OrphanRepo{DB: tx}
			require.NoError(t, r.Add(t.Context(), "uploads/a.png", "timeout"))

			err := r.Remove(t.Context(), "uploads/a.png")
			require.NoError(t, err)

			orphans, err := r.ClaimDue(t.Context(), time.Now().Add(time.Second), time.Now().Add(time.Hour), 10)
			require.NoError(t, err)
			require.Empty(t, orphans)

			require.NoError(t, r.Remove(t.Context(), "uploads/a.png"), "remove unknown is ok")
		})
	})
}
