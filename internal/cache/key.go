package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/h4ev/formgate/internal/auth"
)

const keyPrefix = "cache:"

// Key derives the cache key for user, params and the current time bucket.
func Key(user *auth.Identity, params map[string]string, window time.Duration) string {
	return KeyAt(time.Now(), user, params, window)
}

// KeyAt derives the cache key as of now. A nil user omits the user and role
// segments, empty params omit the params segment and a non-positive window
// omits the time segment. Params are sorted by key so the result does not
// depend on map order.
//
// Keys and values are joined without escaping, so a value containing "&" or
// ":" can reproduce the text of other params or segments and share a key
// with them.
func KeyAt(now time.Time, user *auth.Identity, params map[string]string, window time.Duration) string {
	var parts []string

	if user != nil {
		parts = append(parts, "user-"+strconv.FormatUint(uint64(user.UserID), 10))
		if user.Role != nil {
			parts = append(parts, "role-"+strconv.Itoa(*user.Role))
		}
	}

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + params[k]
		}
		parts = append(parts, "params-"+strings.Join(pairs, "&"))
	}

	if seconds := int64(window / time.Second); seconds > 0 {
		parts = append(parts, "time-"+strconv.FormatInt(floorDiv(now.Unix(), seconds), 10))
	}

	sum := xxhash.Sum64String(strings.Join(parts, ":"))
	return fmt.Sprintf("%s%016x", keyPrefix, sum)
}

// Params flattens a query string to its last value per key.
func Params(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[len(v)-1]
		}
	}
	return params
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
