// Package testutil provides a disposable, migrated PostgreSQL for
// integration tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/cory-johannsen/quizhub/internal/config"
	"github.com/cory-johannsen/quizhub/internal/storage/postgres"
)

const (
	image    = "postgres:16-alpine"
	dbName   = "quizhub_test"
	dbUser   = "quizhub"
	dbSecret = "quizhub"
)

// PostgresContainer is a running database with the schema applied.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	Config    config.DatabaseConfig
}

// StartPostgres launches a container, connects, and migrates it to the
// latest schema.
//
// Precondition: Docker must be available.
// Postcondition: Returns a ready container; the caller must Terminate it.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     dbUser,
				"POSTGRES_PASSWORD": dbSecret,
				"POSTGRES_DB":       dbName,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}

	pc := &PostgresContainer{container: container}
	if err := pc.connect(ctx); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return pc, nil
}

func (pc *PostgresContainer) connect(ctx context.Context) error {
	host, err := pc.container.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pc.container.MappedPort(ctx, "5432")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}

	pc.Config = config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            dbUser,
		Password:        dbSecret,
		Name:            dbName,
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	if _, err := postgres.Migrate(pc.Config.DSN(), "up", 0); err != nil {
		return fmt.Errorf("migrating test database: %w", err)
	}
	pc.Pool, err = postgres.NewPool(ctx, pc.Config, zap.NewNop())
	return err
}

// Terminate closes the pool and removes the container.
func (pc *PostgresContainer) Terminate(ctx context.Context) error {
	if pc.Pool != nil {
		pc.Pool.Close()
	}
	return pc.container.Terminate(ctx)
}

// Truncate empties the given tables, restarting identities.
func (pc *PostgresContainer) Truncate(t *testing.T, tables ...string) {
	t.Helper()
	sql := "TRUNCATE " + strings.Join(quoteAll(tables), ", ") + " RESTART IDENTITY CASCADE"
	if _, err := pc.Pool.DB().Exec(context.Background(), sql); err != nil {
		t.Fatalf("truncating %v: %v", tables, err)
	}
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = pgx.Identifier{n}.Sanitize()
	}
	return out
}

// NewPostgresContainer starts a dedicated container for one test and
// terminates it on cleanup. It skips the test in -short mode.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	start := time.Now()
	pc, err := StartPostgres(context.Background())
	if err != nil {
		t.Fatalf("%v [%s]", err, time.Since(start))
	}
	t.Logf("postgres container ready [%s]", time.Since(start))
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })
	return pc
}

var (
	sharedOnce sync.Once
	shared     *PostgresContainer
	sharedErr  error
)

// NewPool returns the pool of a container shared by every test in the
// package binary, with the users table emptied. The container is reaped
// by testcontainers when the process exits. It skips the test in -short mode.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	sharedOnce.Do(func() {
		shared, sharedErr = StartPostgres(context.Background())
	})
	if sharedErr != nil {
		t.Fatalf("shared postgres: %v", sharedErr)
	}
	shared.Truncate(t, "users")
	return shared.Pool.DB()
}
