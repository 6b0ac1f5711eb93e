package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromClient(raw), mr
}

func TestSetNXHoldsUntilExpiry(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := Key(KindLease, "record_created", "app-1")

	ok, err := client.SetNX(ctx, key, "holder-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "holder-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "second SetNX must not take the key")

	got, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, "holder-a", got)

	mr.FastForward(2 * time.Minute)
	ok, err = client.SetNX(ctx, key, "holder-b", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "key should be free after ttl")
}

func TestDeleteIfValueOnlyRemovesOwnedKey(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	key := Key(KindLease, "payment_resolved", "order-1")
	require.NoError(t, mr.Set(key, "holder-a"))

	removed, err := client.DeleteIfValue(ctx, key, "holder-b")
	require.NoError(t, err)
	require.False(t, removed)
	require.True(t, mr.Exists(key))

	removed, err = client.DeleteIfValue(ctx, key, "holder-a")
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, mr.Exists(key))

	removed, err = client.DeleteIfValue(ctx, key, "holder-a")
	require.NoError(t, err)
	require.False(t, removed, "missing key is not an error")
}

func TestExistsDelAndPing(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	require.NoError(t, mr.Set("gf:k", "v"))

	present, err := client.Exists(ctx, "gf:k")
	require.NoError(t, err)
	require.True(t, present)

	require.NoError(t, client.Del(ctx, "gf:k"))
	present, err = client.Exists(ctx, "gf:k")
	require.NoError(t, err)
	require.False(t, present)
	require.False(t, mr.Exists("gf:k"))
	require.NoError(t, client.Ping(ctx))
}

func TestKey(t *testing.T) {
	if got := Key(KindProcessed, "dispatcher", "evt-1"); got != "gf:processed:dispatcher:evt-1" {
		t.Fatalf("unexpected processed key %q", got)
	}
	if got := Key(KindLease, " payment_resolved ", ""); got != "gf:lease:payment_resolved" {
		t.Fatalf("unexpected lease key %q", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	ctx := context.Background()
	if err := client.Ping(ctx); err == nil {
		t.Fatal("expected error for uninitialized client")
	}
	if _, err := client.SetNX(ctx, "k", "v", time.Second); err == nil {
		t.Fatal("expected error for uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
}

func TestOptions(t *testing.T) {
	if _, err := Options(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when neither url nor address provided")
	}

	opts, err := Options(config.RedisConfig{URL: "redis://localhost:6379/2", DB: 5, PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, 2, opts.DB, "url db wins over config")
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, time.Second, opts.DialTimeout)

	opts, err = Options(config.RedisConfig{Address: "cache:6379", Password: "pw", DB: 3})
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, 3, opts.DB)
}
