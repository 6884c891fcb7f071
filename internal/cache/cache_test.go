package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/onionqc/internal/quality"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok, "entry expired")

	_, ok, _ = c.Get(ctx, "b")
	assert.True(t, ok, "no ttl never expires")

	require.NoError(t, c.Delete(ctx, "b"))
	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	v, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
}

func TestNewRedisCache(t *testing.T) {
	_, err := NewRedisCache("not-a-redis-url")
	require.Error(t, err)

	c, err := NewRedisCache("redis://127.0.0.1:1/0")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, c.Ping(ctx), "nothing listens on port 1")
}

const testModel = "models/model.onnx|models/metadata.json|*classifier.ONNXModel|2|healthy|spoiled"

func TestAnalysisKey(t *testing.T) {
	k1 := AnalysisKey(testModel, []byte("onion"), time.May)
	k2 := AnalysisKey(testModel, []byte("onion"), time.October)
	k3 := AnalysisKey(testModel, []byte("other"), time.May)
	k4 := AnalysisKey("models/model.onnx|models/metadata.json|*classifier.HeuristicModel|2|healthy|spoiled",
		[]byte("onion"), time.May)

	assert.True(t, strings.HasPrefix(k1, KeyPrefix))
	assert.True(t, strings.HasSuffix(k1, ":05"))
	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4, "a different model must not share entries")
	assert.Equal(t, k1, AnalysisKey(testModel, []byte("onion"), time.May))
}

func TestAnalysisCache(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCache()
	c := NewAnalysisCache(store, time.Hour, nil)
	img := []byte("png bytes")

	_, ok := c.Lookup(ctx, testModel, img, time.May)
	assert.False(t, ok)

	a := quality.Assess([]quality.ClassificationResult{
		{Label: "healthy", Probability: 0.9},
		{Label: "spoiled", Probability: 0.1},
	}, quality.DefaultLabelRoles(), time.May)
	c.Store(ctx, testModel, img, time.May, a)

	got, ok := c.Lookup(ctx, testModel, img, time.May)
	require.True(t, ok)
	assert.Equal(t, a, got)

	_, ok = c.Lookup(ctx, testModel, img, time.June)
	assert.False(t, ok)

	_, ok = c.Lookup(ctx, "reloaded|model", img, time.May)
	assert.False(t, ok, "entries from another model are not served")

	c.Store(ctx, testModel, []byte("broken"), time.May, quality.FailedAnalysis(errors.New("x")))
	assert.Equal(t, 1, store.Len(), "degraded records are not cached")
	require.NoError(t, c.Ping(ctx))
}

func TestAnalysisCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCache()
	img := []byte("img")
	require.NoError(t, store.Set(ctx, AnalysisKey(testModel, img, time.May), []byte("{not json"), 0))

	c := NewAnalysisCache(store, time.Hour, nil)
	_, ok := c.Lookup(ctx, testModel, img, time.May)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

type failingStore struct{ MemoryCache }

func (*failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection reset")
}

func TestAnalysisCache_StoreErrorIsMiss(t *testing.T) {
	c := NewAnalysisCache(&failingStore{}, time.Hour, nil)
	_, ok := c.Lookup(context.Background(), testModel, []byte("x"), time.May)
	assert.False(t, ok)
}
