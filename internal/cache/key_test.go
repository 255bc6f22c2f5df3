package cache

import (
	"fmt"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"

	"github.com/h4ev/formgate/internal/auth"
)

func intPtr(v int) *int { return &v }

var keyFormat = regexp.MustCompile(`^cache:[0-9a-f]{16}$`)

func TestKeyAtSegments(t *testing.T) {
	user := &auth.Identity{UserID: 1, Username: "a@x.com", Role: intPtr(2)}
	now := time.Unix(125, 0)

	got := KeyAt(now, user, map[string]string{"b": "2", "a": "1"}, time.Minute)

	want := fmt.Sprintf("cache:%016x", xxhash.Sum64String("user-1:role-2:params-a=1&b=2:time-2"))
	assert.Equal(t, want, got)
	assert.Regexp(t, keyFormat, got)
}

func TestKeyAtDeterministic(t *testing.T) {
	user := &auth.Identity{UserID: 42}
	start := time.Unix(6000, 0)
	params := map[string]string{"page": "1", "q": "x"}

	first := KeyAt(start, user, params, time.Minute)
	assert.Equal(t, first, KeyAt(start.Add(59*time.Second), user, params, time.Minute))
	assert.NotEqual(t, first, KeyAt(start.Add(60*time.Second), user, params, time.Minute))
}

func TestKeyAtOrderIndependent(t *testing.T) {
	user := &auth.Identity{UserID: 3}
	now := time.Now()

	a := KeyAt(now, user, map[string]string{"b": "2", "a": "1"}, time.Minute)
	b := KeyAt(now, user, map[string]string{"a": "1", "b": "2"}, time.Minute)
	assert.Equal(t, a, b)
}

func TestKeyAtDistinctInputs(t *testing.T) {
	now := time.Unix(6000, 0)
	user := &auth.Identity{UserID: 1}

	keys := []string{
		KeyAt(now, user, nil, time.Minute),
		KeyAt(now, user, map[string]string{"a": "1"}, time.Minute),
		KeyAt(now, user, map[string]string{"a": "2"}, time.Minute),
		KeyAt(now, user, map[string]string{"b": "1"}, time.Minute),
		KeyAt(now, user, map[string]string{"a": "1", "b": "1"}, time.Minute),
		KeyAt(now, &auth.Identity{UserID: 2}, map[string]string{"a": "1"}, time.Minute),
		KeyAt(now, &auth.Identity{UserID: 1, Role: intPtr(0)}, map[string]string{"a": "1"}, time.Minute),
		KeyAt(now, user, map[string]string{"a": "1"}, 0),
		KeyAt(now, nil, map[string]string{"a": "1"}, time.Minute),
	}

	seen := make(map[string]int)
	for i, k := range keys {
		if j, dup := seen[k]; dup {
			t.Fatalf("keys %d and %d collide: %s", j, i, k)
		}
		seen[k] = i
	}
}

func TestKeyAtUnescapedSeparators(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.Equal(t,
		KeyAt(now, nil, map[string]string{"a": "1", "b": "2"}, 0),
		KeyAt(now, nil, map[string]string{"a": "1&b=2"}, 0))

	bucket := now.Unix() / 60
	assert.Equal(t,
		KeyAt(now, nil, map[string]string{"a": "1"}, time.Minute),
		KeyAt(now, nil, map[string]string{"a": fmt.Sprintf("1:time-%d", bucket)}, 0))
}

func TestKeyAtDegenerate(t *testing.T) {
	got := KeyAt(time.Now(), nil, nil, 0)
	assert.Equal(t, "cache:ef46db3751d8e999", got)
	assert.Equal(t, got, KeyAt(time.Unix(0, 0), nil, map[string]string{}, 0))
}

func TestParamsKeepsLastValue(t *testing.T) {
	values := url.Values{"a": {"1", "2"}, "b": {"x"}, "c": {}}

	assert.Equal(t, map[string]string{"a": "2", "b": "x"}, Params(values))
}
