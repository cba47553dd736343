package testutil

import (
	"context"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/videotube/internal/db"
	"github.com/nkiryanov/videotube/internal/models"
)

const postgresImage = "postgres:17-alpine"

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	return ln.Addr().(*net.TCPAddr).Port, nil
}

type PostgresContainer struct {
	DSN       string
	Pool      *pgxpool.Pool
	Terminate func()
}

// Start postgres with migrated schema
// Test is skipped when docker is not reachable
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	container, err := postgres.Run(t.Context(),
		postgresImage,
		postgres.WithDatabase("videotube-test"),
		postgres.WithUsername("videotube"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "postgres container not started")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err)
	t.Logf("postgres started, DSN=%v", dsn)

	pool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "schema not migrated")

	return PostgresContainer{
		DSN:  dsn,
		Pool: pool,
		Terminate: func() {
			pool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type beginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// Run fn inside transaction that is rolled back when fn returns
func WithTx(db beginner, t *testing.T, fn func(tx pgx.Tx)) {
	tx, err := db.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		require.NoError(t, tx.Rollback(t.Context()))
	}()

	fn(tx)
}

// Account fixture, email and avatar are derived from username
func NewAccount(username string) models.Account {
	return models.Account{
		Username:     username,
		Email:        username + "@example.com",
		Fullname:     "Test " + username,
		Avatar:       models.MediaObject{ID: "avatars/" + username, URL: "https://cdn.test/avatars/" + username},
		PasswordHash: "hashedpassword123",
	}
}

type accountCreator interface {
	Create(ctx context.Context, account models.Account) (models.Account, error)
}

// Persist account fixture with the password hash
func CreateAccount(t *testing.T, accounts accountCreator, username string, passwordHash string) models.Account {
	t.Helper()

	a := NewAccount(username)
	if passwordHash != "" {
		a.PasswordHash = passwordHash
	}

	account, err := accounts.Create(t.Context(), a)
	require.NoError(t, err, "account fixture not created")
	return account
}
