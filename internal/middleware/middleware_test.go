package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memories/internal/utils"
)

const secret = "test"

// whoami echoes the caller identity seen by the handler.
func whoami(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		id = "anonymous"
	}
	_, _ = w.Write([]byte(id))
}

func serveAuth(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	Authenticate(secret)(http.HandlerFunc(whoami)).ServeHTTP(rr, req)
	return rr
}

func TestAuthenticateWithoutHeader(t *testing.T) {
	rr := serveAuth(t, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anonymous", rr.Body.String())
}

func TestAuthenticateCustomToken(t *testing.T) {
	token, err := GenerateToken(secret, "user-42", time.Hour)
	require.NoError(t, err)

	rr := serveAuth(t, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-42", rr.Body.String())
}

func TestAuthenticateFallsBackToSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "sub-only"})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	rr := serveAuth(t, "Bearer "+signed)
	assert.Equal(t, "sub-only", rr.Body.String())
}

func TestAuthenticateUnresolvableTokensStayAnonymous(t *testing.T) {
	foreign, err := GenerateToken("other-secret", "user-42", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(secret, "user-42", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "bad signature", header: "Bearer " + foreign},
		{name: "expired", header: "Bearer " + expired},
		{name: "not a jwt", header: "Bearer not.a.jwt"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "empty bearer", header: "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveAuth(t, tt.header)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "anonymous", rr.Body.String())
		})
	}
}

func TestAuthenticateLongTokenUsesUnverifiedSubject(t *testing.T) {
	// Long third-party tokens are not checked against the local secret.
	claims := jwt.MapClaims{
		"sub":     "1098765432123456789",
		"email":   "someone@example.com",
		"picture": "https://example.com/" + strings.Repeat("p", 400),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("issuer-key"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(signed), customTokenMaxLen)

	rr := serveAuth(t, "Bearer "+signed)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1098765432123456789", rr.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	handler := CORSMiddleware(DefaultCORSConfig(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/posts/1/likePost", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSDisallowedOrigin(t *testing.T) {
	handler := CORSMiddleware(DefaultCORSConfig([]string{"https://memories.example"}))(http.HandlerFunc(whoami))

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := utils.NewMetricsCollector()

	router := mux.NewRouter()
	router.Use(RequestLogger(logger, metrics))
	router.HandleFunc("/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, RequestIDFromContext(r.Context()))
		http.Error(w, "No post with id: x", http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/posts/x", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "req-1", rr.Header().Get(RequestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["id"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
	assert.Equal(t, "/posts/x", entry["path"])

	expected := `
# HELP memories_http_requests_total HTTP requests handled, by route, method and status.
# TYPE memories_http_requests_total counter
memories_http_requests_total{method="GET",route="/posts/{id}",status="404"} 1
# HELP memories_http_errors_total HTTP responses with a status of 400 or above, by route.
# TYPE memories_http_errors_total counter
memories_http_errors_total{route="/posts/{id}"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected),
		"memories_http_requests_total", "memories_http_errors_total"))
}

func TestRequestLoggerAroundRouter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := utils.NewMetricsCollector()

	router := mux.NewRouter()
	router.Use(RecordRoute)
	router.HandleFunc("/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}).Methods(http.MethodGet)
	h := RequestLogger(logger, metrics)(router)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/posts/x"},
		{http.MethodGet, "/nope"},
		{http.MethodPut, "/posts/x"},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		assert.NotEmpty(t, rr.Header().Get(RequestIDHeader), tc.path)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "/nope", entry["path"])
	assert.Equal(t, "unmatched", entry["route"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])

	expected := `
# HELP memories_http_requests_total HTTP requests handled, by route, method and status.
# TYPE memories_http_requests_total counter
memories_http_requests_total{method="GET",route="/posts/{id}",status="200"} 1
memories_http_requests_total{method="GET",route="unmatched",status="404"} 1
memories_http_requests_total{method="PUT",route="unmatched",status="405"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected),
		"memories_http_requests_total"))
}
