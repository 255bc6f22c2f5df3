package audit

import (
	"math"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

type RequestInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

type ResponseInfo struct {
	StatusCode int `json:"status_code"`
}

// Entry is one completed request/response cycle of an authenticated user.
type Entry struct {
	UserID         uint         `json:"user_id"`
	Username       string       `json:"username"`
	TimestampStart string       `json:"timestamp_start"`
	Request        RequestInfo  `json:"request"`
	TimestampEnd   string       `json:"timestamp_end"`
	DurationMs     float64      `json:"duration_ms"`
	Response       ResponseInfo `json:"response"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// durationMillis converts d to milliseconds rounded to two decimals.
func durationMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
