package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/popcache/store"
	"github.com/IvanBrykalov/popcache/store/storetest"
)

func newMini(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, New(rdb)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Harness {
		mr, s := newMini(t)
		return storetest.Harness{Store: s, Advance: mr.FastForward}
	})
}

// The refresh transaction must reach Redis as MULTI/EXEC and leave only the
// new members behind.
func TestTxPipeline_ReplacesSortedSet(t *testing.T) {
	ctx := context.Background()
	mr, s := newMini(t)

	_, err := mr.ZAdd("item:popular", 50, "item:9")
	require.NoError(t, err)

	tx := s.TxPipeline()
	tx.Del("item:popular")
	tx.HSet("item:1", map[string]string{"id": "1", "title": "Carpathians", "price": "120.00"})
	tx.ZAdd("item:popular", store.Z{Score: 7, Member: "item:1"})
	require.NoError(t, tx.Exec(ctx))

	members, err := mr.ZMembers("item:popular")
	require.NoError(t, err)
	assert.Equal(t, []string{"item:1"}, members)
	assert.Equal(t, "Carpathians", mr.HGet("item:1", "title"))
}

func TestStore_WrongTypeMapped(t *testing.T) {
	ctx := context.Background()
	mr, s := newMini(t)

	require.NoError(t, mr.Set("k", "plain string"))
	err := s.LPush(ctx, "k", "x")
	assert.ErrorIs(t, err, store.ErrWrongType)
}

func TestStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	s := New(rdb)

	_, err := s.LRange(ctx, "k", 0, -1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrWrongType)
}

func TestDial_BadURL(t *testing.T) {
	_, err := Dial(context.Background(), "not-a-url://")
	assert.Error(t, err)
}

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, checkVersion("7.2.4", MinServerVersion))
	assert.NoError(t, checkVersion("5.0.0", MinServerVersion))
	assert.Error(t, checkVersion("4.0.14", MinServerVersion))
	assert.Error(t, checkVersion("garbage", MinServerVersion))
}
