package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestMiddleware_LogsRedirectWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	h := RequestContextMiddleware(AccessLogMiddleware("test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/parabank/overview.htm", http.StatusFound)
	})))

	req := httptest.NewRequest(http.MethodPost, "/parabank/login.htm", nil)
	req.Header.Set(RequestIDHeader, "req-fixed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-fixed", rec.Header().Get(RequestIDHeader))
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "http_access", lines[0]["msg"])
	assert.Equal(t, "req-fixed", lines[0]["request_id"])
	assert.Equal(t, "/parabank/overview.htm", lines[0]["location"])
	assert.EqualValues(t, http.StatusFound, lines[0]["status"])
}

func TestMiddleware_LevelByOutcome(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	h := RequestContextMiddleware(AccessLogMiddleware("test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	for _, path := range []string{"/page", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.EqualValues(t, 2, lines[0]["resp_bytes"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.True(t, strings.HasPrefix(lines[1]["request_id"].(string), "req-"))
}
