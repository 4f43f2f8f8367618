package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/quizhub/internal/storage/postgres"
	"github.com/cory-johannsen/quizhub/internal/testutil"
)

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestUserRepository_CRUD(t *testing.T) {
	repo := postgres.NewUserRepository(testutil.NewPool(t))
	ctx := context.Background()

	name := uniqueName("host")
	created, err := repo.Add(ctx, name, name+"@Example.com", "password123")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, name+"@example.com", created.Email)
	assert.False(t, created.CreatedAt.IsZero())

	exists, err := repo.Exists(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Username)

	_, err = repo.Add(ctx, name, "other@example.com", "password123")
	assert.ErrorIs(t, err, postgres.ErrUserExists)

	newEmail := "renamed@example.com"
	updated, err := repo.Update(ctx, created.ID, postgres.UserUpdate{Email: &newEmail})
	require.NoError(t, err)
	assert.Equal(t, newEmail, updated.Email)
	assert.Equal(t, created.PasswordHash, updated.PasswordHash)

	newPassword := "another-password"
	_, err = repo.Update(ctx, created.ID, postgres.UserUpdate{Password: &newPassword})
	require.NoError(t, err)
	_, err = repo.Authenticate(ctx, name, "password123")
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)
	_, err = repo.Authenticate(ctx, name, newPassword)
	assert.NoError(t, err)

	users, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, repo.Delete(ctx, created.ID))
	assert.ErrorIs(t, repo.Delete(ctx, created.ID), postgres.ErrUserNotFound)
	_, err = repo.Get(ctx, created.ID)
	assert.ErrorIs(t, err, postgres.ErrUserNotFound)
	_, err = repo.Update(ctx, created.ID, postgres.UserUpdate{Email: &newEmail})
	assert.ErrorIs(t, err, postgres.ErrUserNotFound)
}

func TestUserRepository_AddRejectsInvalid(t *testing.T) {
	repo := postgres.NewUserRepository(testutil.NewPool(t))
	_, err := repo.Add(context.Background(), "x", "bad", "pw")
	assert.ErrorIs(t, err, postgres.ErrInvalidUser)
}

func TestPool_Health(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	pc := testutil.NewPostgresContainer(t)
	assert.NoError(t, pc.Pool.Health(context.Background(), 5*time.Second))

	stats := pc.Pool.Stats()
	assert.Equal(t, int32(5), stats.Max)
	assert.LessOrEqual(t, stats.Acquired, stats.Total)
}

func TestMigrate_DownThenUp(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	pc := testutil.NewPostgresContainer(t)
	dsn := pc.Config.DSN()

	res, err := postgres.Migrate(dsn, "up", 0)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, uint(1), res.Version)

	res, err = postgres.Migrate(dsn, "down", 1)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	_, err = postgres.NewUserRepository(pc.Pool.DB()).List(context.Background(), 10, 0)
	assert.Error(t, err, "users table should be gone")

	res, err = postgres.Migrate(dsn, "up", 0)
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.Version)
	assert.False(t, res.Dirty)
}

func TestMigrate_InvalidDirection(t *testing.T) {
	_, err := postgres.Migrate("postgres://nobody@127.0.0.1:1/none?sslmode=disable", "sideways", 0)
	assert.Error(t, err)
}
