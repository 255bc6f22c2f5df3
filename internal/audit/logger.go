package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/h4ev/formgate/internal/auth"
	"github.com/h4ev/formgate/internal/metrics"
)

// Logger appends audit entries to one JSON-lines file per user under dir.
type Logger struct {
	dir string
	log *logrus.Entry
	now func() time.Time
}

func NewLogger(logger *logrus.Logger, dir string) *Logger {
	return &Logger{
		dir: dir,
		log: logger.WithField("component", "audit"),
		now: time.Now,
	}
}

// Path returns the log file of userID.
func (l *Logger) Path(userID uint) string {
	return filepath.Join(l.dir, fmt.Sprintf("user_%d.jsonl", userID))
}

// Append writes e as a single line with a single write call on an O_APPEND
// descriptor, so concurrent appends to one file never interleave.
func (l *Logger) Append(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create audit log dir: %w", err)
	}

	f, err := os.OpenFile(l.Path(e.UserID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write audit log: %w", err)
	}
	return f.Close()
}

// Middleware records an audit entry for every request that carries an
// authenticated identity. Anonymous requests pass through unrecorded.
// Failed appends are logged and never change the response.
func (l *Logger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		if id == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := l.now()
		entry := Entry{
			UserID:         id.UserID,
			Username:       id.Username,
			TimestampStart: formatTimestamp(start),
			Request: RequestInfo{
				Method: r.Method,
				Path:   r.URL.RequestURI(),
			},
		}
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		defer func() {
			p := recover()
			if p != nil {
				rec.statusCode = http.StatusInternalServerError
			}
			l.finish(entry, start, rec.statusCode)
			if p != nil {
				panic(p)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}

func (l *Logger) finish(entry Entry, start time.Time, status int) {
	end := l.now()
	entry.TimestampEnd = formatTimestamp(end)
	entry.DurationMs = durationMillis(end.Sub(start))
	entry.Response = ResponseInfo{StatusCode: status}

	if err := l.Append(entry); err != nil {
		metrics.AuditWriteFailuresTotal.Inc()
		l.log.WithError(err).WithFields(logrus.Fields{
			"user_id": entry.UserID,
			"path":    entry.Request.Path,
		}).Warn("Failed to write audit entry")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}
