package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T, prefix string) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	return NewRedisRepository(redis.NewClient(&redis.Options{Addr: m.Addr()}), prefix), m
}

func session(id string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Sub: "sub-" + id, Username: "user-" + id, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	repo, m := newRedisRepo(t, "")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, session("a1", time.Hour)))
	require.True(t, m.Exists(DefaultRedisPrefix+"a1"))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "sub-a1", got.Sub)
	require.Equal(t, "user-a1", got.Actor().Username)

	require.NoError(t, repo.Delete(ctx, "a1"))
	got, err = repo.Get(ctx, "a1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_ExpiresWithSession(t *testing.T) {
	repo, m := newRedisRepo(t, "test:")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, session("b1", 10*time.Second)))
	m.FastForward(11 * time.Second)

	got, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_ExpiredSessionNotStored(t *testing.T) {
	repo, m := newRedisRepo(t, "test:")
	require.NoError(t, repo.Create(context.Background(), session("c1", -time.Minute)))
	require.False(t, m.Exists("test:c1"))
}

func TestRedisRepository_CorruptPayload(t *testing.T) {
	repo, m := newRedisRepo(t, "test:")
	require.NoError(t, m.Set("test:d1", "{not json"))
	_, err := repo.Get(context.Background(), "d1")
	require.Error(t, err)
}
