package utils

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewAppError(ErrDatabase, "failed to count posts", errors.New("connection refused"))
	assert.Equal(t, "failed to count posts: connection refused", err.Error())

	assert.Equal(t, "No post with id: abc", NewPostNotFoundError("abc").Error())
}

func TestIsErrorCodeFollowsWrapping(t *testing.T) {
	wrapped := fmt.Errorf("get post: %w", NewPostNotFoundError("abc"))

	assert.True(t, IsErrorCode(wrapped, ErrNotFound))
	assert.False(t, IsErrorCode(wrapped, ErrDatabase))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrNotFound))
}

func TestAppErrorToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, AppErrorToHTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, AppErrorToHTTPStatus(ErrInvalidInput))
	assert.Equal(t, http.StatusUnauthorized, AppErrorToHTTPStatus(ErrUnauthorized))
	assert.Equal(t, http.StatusConflict, AppErrorToHTTPStatus(ErrDuplicate))
	assert.Equal(t, http.StatusInternalServerError, AppErrorToHTTPStatus(ErrDatabase))
	assert.Equal(t, http.StatusInternalServerError, AppErrorToHTTPStatus("SOMETHING_ELSE"))
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrementRequests("/posts", http.MethodGet, http.StatusOK)
	mc.IncrementRequests("/posts", http.MethodGet, http.StatusOK)
	mc.IncrementErrors("/posts/{id}")
	mc.AddOperationLatency("list_posts", 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(mc.requests.WithLabelValues("/posts", http.MethodGet, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.errors.WithLabelValues("/posts/{id}")))

	rec := httptest.NewRecorder()
	mc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "memories_operation_duration_seconds")
}
