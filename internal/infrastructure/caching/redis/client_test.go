package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	c, err := New("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestClient_SetGetRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	type cached struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	require.NoError(t, c.Set(ctx, "cotizacion:details:cot_1", cached{ID: "cot_1", Status: "EN_PROCESO"}, time.Minute))

	var got cached
	found, err := c.Get(ctx, "cotizacion:details:cot_1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cot_1", got.ID)
	assert.Equal(t, "EN_PROCESO", got.Status)
}

func TestClient_GetMissIsNotAnError(t *testing.T) {
	c, _ := newTestClient(t)

	var got map[string]any
	found, err := c.Get(context.Background(), "cotizacion:details:nope", &got)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestClient_DeleteInvalidates(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k1", "k-not-there"))

	var got string
	found, err := c.Get(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// No keys is a no-op, not an error.
	assert.NoError(t, c.Delete(ctx))
}

func TestClient_SetHonorsTTL(t *testing.T) {
	c, s := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", time.Minute))
	s.FastForward(2 * time.Minute)

	var got string
	found, err := c.Get(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_MarkOnce(t *testing.T) {
	c, s := newTestClient(t)
	ctx := context.Background()

	first, err := c.MarkOnce(ctx, "notify:mail:msg-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := c.MarkOnce(ctx, "notify:mail:msg-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second, "a redelivered message must not send twice")

	s.FastForward(2 * time.Hour)
	again, err := c.MarkOnce(ctx, "notify:mail:msg-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("not-a-url")
	assert.Error(t, err)
}
