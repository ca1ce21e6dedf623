package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSetClient struct {
	members map[string]bool
	failAll bool
	adds    []string
}

func (f *fakeSetClient) SIsMember(_ context.Context, _ string, member interface{}) *redis.BoolCmd {
	if f.failAll {
		return redis.NewBoolResult(false, errors.New("connection refused"))
	}
	return redis.NewBoolResult(f.members[member.(string)], nil)
}

func (f *fakeSetClient) SAdd(_ context.Context, _ string, members ...interface{}) *redis.IntCmd {
	if f.failAll {
		return redis.NewIntResult(0, errors.New("connection refused"))
	}
	for _, m := range members {
		f.members[m.(string)] = true
		f.adds = append(f.adds, m.(string))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func TestSeenCacheWritesThrough(t *testing.T) {
	t.Parallel()

	repo := createTestRepository(t)
	client := &fakeSetClient{members: map[string]bool{}}
	cache := NewSeenCache(client, "seen", repo, nil)
	ctx := context.Background()

	require.NoError(t, cache.MarkSeen(ctx, "vk_AA1qZ9xY", "title"))
	assert.Equal(t, []string{"AA1qZ9xY"}, client.adds)

	seen, err := repo.HasSeen(ctx, "AA1qZ9xY")
	require.NoError(t, err)
	assert.True(t, seen, "sqlite must hold the row")

	seen, err = cache.HasSeen(ctx, "vk_vk_AA1qZ9xY")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSeenCacheBackfillsFromStore(t *testing.T) {
	t.Parallel()

	repo := createTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.MarkSeen(ctx, "AB12345", "older"))

	client := &fakeSetClient{members: map[string]bool{}}
	cache := NewSeenCache(client, "seen", repo, nil)

	seen, err := cache.HasSeen(ctx, "AB12345")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, client.members["AB12345"])
}

func TestSeenCacheFallsBackWhenRedisDown(t *testing.T) {
	t.Parallel()

	repo := createTestRepository(t)
	cache := NewSeenCache(&fakeSetClient{members: map[string]bool{}, failAll: true}, "seen", repo, nil)
	ctx := context.Background()

	require.NoError(t, cache.MarkSeen(ctx, "AB12345", "title"))

	seen, err := cache.HasSeen(ctx, "AB12345")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = cache.HasSeen(ctx, "ZZ99999")
	require.NoError(t, err)
	assert.False(t, seen)
}
