package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phonestore-backend/internal/testutil"
)

func TestDBStorePurgeKeepsUnexpired(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewDBStore(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Revoke(ctx, "old", 1, now.Add(-time.Hour)))
	require.NoError(t, store.Revoke(ctx, "fresh", 1, now.Add(time.Hour)))

	n, err := store.Purge(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, err := store.IsRevoked(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = store.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func newCached(t *testing.T) (*CachedStore, *DBStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	db := NewDBStore(testutil.NewDB(t))
	return NewCachedStore(db, rdb, zap.NewNop()), db, mr
}

func TestCachedStoreWritesThrough(t *testing.T) {
	store, db, mr := newCached(t)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "abc", 7, time.Now().Add(30*time.Minute)))
	assert.True(t, mr.Exists(cacheKeyPrefix+"abc"))
	ttl := mr.TTL(cacheKeyPrefix + "abc")
	assert.InDelta(t, (30 * time.Minute).Seconds(), ttl.Seconds(), 5)

	revoked, err := db.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestCachedStoreRefillsFromDB(t *testing.T) {
	store, db, mr := newCached(t)
	ctx := context.Background()

	require.NoError(t, db.Revoke(ctx, "only-in-db", 1, time.Now().Add(time.Hour)))
	assert.False(t, mr.Exists(cacheKeyPrefix+"only-in-db"))

	revoked, err := store.IsRevoked(ctx, "only-in-db")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists(cacheKeyPrefix+"only-in-db"))

	revoked, err = store.IsRevoked(ctx, "never")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.False(t, mr.Exists(cacheKeyPrefix+"never"))
}

func TestCachedStoreFallsBackWhenRedisDown(t *testing.T) {
	store, db, mr := newCached(t)
	ctx := context.Background()
	require.NoError(t, db.Revoke(ctx, "k", 1, time.Now().Add(time.Hour)))

	mr.Close()

	revoked, err := store.IsRevoked(ctx, "k")
	require.NoError(t, err)
	assert.True(t, revoked)
	require.NoError(t, store.Revoke(ctx, "k2", 1, time.Now().Add(time.Hour)))
}
