package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level string, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func TestLoggerMiddleware(t *testing.T) {
	serve := func(t *testing.T, status int) logEntry {
		t.Helper()
		l := &recordingLogger{}

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, err := w.Write([]byte("hi"))
			require.NoError(t, err, "should write response")
		})

		r := httptest.NewRequest(http.MethodGet, "/test", nil)
		r.RemoteAddr = "192.0.2.1:1234"
		r.Header.Set("User-Agent", "test-agent/1.0")
		w := httptest.NewRecorder()

		LoggerMiddleware(l)(h).ServeHTTP(w, r)

		body, err := io.ReadAll(w.Result().Body)
		require.NoError(t, err)
		require.Equal(t, status, w.Code)
		require.Equal(t, "hi", string(body), "should return 'hi' in response")
		require.Len(t, l.entries, 1, "logger should be called once")
		return l.entries[0]
	}

	t.Run("fields", func(t *testing.T) {
		entry := serve(t, http.StatusTeapot)

		require.Equal(t, "got HTTP request", entry.msg, "logger should log 'got HTTP request'")
		args := entry.args
		require.Len(t, args, 14, "logger should log 14 fields")
		require.Equal(t, "method", args[0])
		require.Equal(t, "GET", args[1])
		require.Equal(t, "uri", args[2])
		require.Equal(t, "/test", args[3])
		require.Equal(t, "duration", args[4])
		require.NotEmpty(t, args[5], "duration should not be empty")
		require.Equal(t, "status", args[6])
		require.Equal(t, http.StatusTeapot, args[7])
		require.Equal(t, "size", args[8])
		require.Equal(t, 2, args[9], "size should be 2 (length of 'hi')")
		require.Equal(t, "client_ip", args[10])
		require.Equal(t, "192.0.2.1", args[11])
		require.Equal(t, "user_agent", args[12])
		require.Equal(t, "test-agent/1.0", args[13])
	})

	t.Run("level by status", func(t *testing.T) {
		tests := []struct {
			status int
			level  string
		}{
			{http.StatusOK, "info"},
			{http.StatusFound, "info"},
			{http.StatusUnauthorized, "warn"},
			{http.StatusTooManyRequests, "warn"},
			{http.StatusInternalServerError, "error"},
		}

		for _, tt := range tests {
			t.Run(http.StatusText(tt.status), func(t *testing.T) {
				entry := serve(t, tt.status)

				require.Equal(t, tt.level, entry.level)
			})
		}
	})
}

func TestStatusRecorder(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())

	_, err := rec.Write([]byte("body"))
	require.NoError(t, err)
	rec.WriteHeader(http.StatusInternalServerError)

	require.Equal(t, http.StatusOK, rec.status, "implicit 200 is kept once body is written")
	require.Equal(t, 4, rec.size)
}
