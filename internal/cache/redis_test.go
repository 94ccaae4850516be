package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

func setupTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	return c, mr
}

func TestRedis_SetGet(t *testing.T) {
	c, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "apollo:person:ada@acme.com", person{Name: "Ada", Title: "CTO"}))
	assert.True(t, mr.Exists("sdr:apollo:person:ada@acme.com"))

	var got person
	ok, err := c.Get(ctx, "apollo:person:ada@acme.com", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, person{Name: "Ada", Title: "CTO"}, got)
}

func TestRedis_Miss(t *testing.T) {
	c, _ := setupTestRedis(t, time.Hour)

	var got person
	ok, err := c.Get(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Expires(t *testing.T) {
	c, mr := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", person{Name: "Ada"}))
	mr.FastForward(2 * time.Minute)

	var got person
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_CorruptValue(t *testing.T) {
	c, mr := setupTestRedis(t, time.Hour)
	require.NoError(t, mr.Set("sdr:bad", "not-json"))

	var got person
	_, err := c.Get(context.Background(), "bad", &got)
	assert.Error(t, err)
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "://nope", time.Hour)
	assert.Error(t, err)
}

func TestNewRedis_Connects(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err := NewRedis(context.Background(), "redis://"+mr.Addr()+"/0", time.Hour)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
