package cache

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h4ev/formgate/internal/auth"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

type recordingStore struct {
	*MemoryStore
	ttls map[string]time.Duration
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.ttls[key] = ttl
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func TestResponseCacheSaveAndLookup(t *testing.T) {
	log, _ := test.NewNullLogger()
	mem, err := NewMemoryStore(16)
	require.NoError(t, err)
	store := &recordingStore{MemoryStore: mem, ttls: map[string]time.Duration{}}
	rc := NewResponseCache(log, store, DefaultTTL, DefaultWindow)
	ctx := context.Background()

	key := rc.Key(&auth.Identity{UserID: 1}, "/forms/alice", url.Values{"page": {"1"}})
	_, ok := rc.Lookup(ctx, key)
	assert.False(t, ok)

	rc.Save(ctx, key, []map[string]any{{"formid": 1}})

	value, ok := rc.Lookup(ctx, key)
	require.True(t, ok)
	assert.JSONEq(t, `[{"formid":1}]`, string(value))
	assert.Equal(t, rc.TTL(), store.ttls[key])
	assert.Equal(t, 300*time.Second, rc.TTL())
}

func TestResponseCacheKeyMatchesDeriver(t *testing.T) {
	log, _ := test.NewNullLogger()
	rc := NewResponseCache(log, failingStore{}, DefaultTTL, DefaultWindow)
	user := &auth.Identity{UserID: 9, Role: intPtr(2)}

	got := rc.Key(user, "/forms/alice", url.Values{"b": {"2"}, "a": {"1"}})

	// Keys rotate every window; retry once if the bucket rolled over mid-test.
	want := Key(user, map[string]string{"a": "1", "b": "2", ":path": "/forms/alice"}, DefaultWindow)
	if got != want {
		got = rc.Key(user, "/forms/alice", url.Values{"b": {"2"}, "a": {"1"}})
	}
	assert.Equal(t, want, got)
}

func TestResponseCacheKeySeparatesPaths(t *testing.T) {
	log, _ := test.NewNullLogger()
	rc := NewResponseCache(log, failingStore{}, DefaultTTL, 0)
	user := &auth.Identity{UserID: 9}

	forms := rc.Key(user, "/forms/alice", nil)
	assert.NotEqual(t, forms, rc.Key(user, "/forms/bob", nil))
	assert.NotEqual(t, forms, rc.Key(user, "/forms/1/submissions", nil))
	assert.Equal(t, forms, rc.Key(user, "/forms/alice", url.Values{":path": {"/forms/bob"}}))
}

func TestResponseCacheStoreErrorsAreMisses(t *testing.T) {
	log, hook := test.NewNullLogger()
	rc := NewResponseCache(log, failingStore{}, DefaultTTL, DefaultWindow)
	ctx := context.Background()

	_, ok := rc.Lookup(ctx, "cache:0")
	assert.False(t, ok)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	hook.Reset()
	rc.Save(ctx, "cache:0", []int{1})
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Failed to cache response", hook.LastEntry().Message)
}

func TestCachePurgerPurgeOnce(t *testing.T) {
	log, hook := test.NewNullLogger()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	store.now = clock.Now
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Second))
	clock.Advance(time.Minute)

	purger := NewCachePurger(log, store, time.Hour)
	assert.Equal(t, 2, purger.PurgeOnce(ctx))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, 2, hook.LastEntry().Data["count"])
	assert.Equal(t, 0, purger.PurgeOnce(ctx))
}

func TestCachePurgerStopsOnCancel(t *testing.T) {
	log, _ := test.NewNullLogger()
	store, err := NewMemoryStore(8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewCachePurger(log, store, time.Millisecond).Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purger did not stop")
	}
}
