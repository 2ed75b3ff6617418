package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := New(Config{Address: mr.Addr(), Key: "test:processed"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestNewRequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	var cfgErr *archiver.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, ErrEmptyAddress)
}

func TestLoadMissingKeyIsEmpty(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, archiver.NewProcessedSet("url1", "url2", "url3")))
	require.NoError(t, store.Save(ctx, archiver.NewProcessedSet("url1", "url2")))

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, archiver.NewProcessedSet("url1", "url2"), set)

	members, err := mr.Members("test:processed")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"url1", "url2"}, members)
}

func TestSaveEmptyClearsKey(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, archiver.NewProcessedSet("url1")))
	require.NoError(t, store.Save(ctx, archiver.NewProcessedSet()))
	assert.False(t, mr.Exists("test:processed"))
}

func TestLoadWrongTypeIsCorruption(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("test:processed", "not a set"))
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewWithClient(client, "test:processed")
	t.Cleanup(func() { _ = store.Close() })

	_, err := store.Load(context.Background())
	var corrupt *archiver.StateCorruptionError
	require.ErrorAs(t, err, &corrupt)
}
