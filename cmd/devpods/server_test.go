package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devpods/pkg/config"
	"devpods/pkg/container/containertest"
	"devpods/pkg/credentials"
	"devpods/pkg/orchestrator"
	"devpods/pkg/registry"
	"devpods/pkg/storage"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *containertest.Runtime) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	rt := containertest.New()

	store, err := storage.NewStorage(t.TempDir(), logger)
	require.NoError(t, err)

	orch := orchestrator.New(orchestrator.Options{
		Runtime:     rt,
		Images:      registry.NewAcquirer(rt, registry.Auth{}, "mirror.gcr.io", logger),
		Storage:     store,
		Credentials: credentials.Defaults(),
		Health:      config.PollConfig{Interval: time.Millisecond, Attempts: 2},
		Bootstrap:   config.PollConfig{Interval: time.Millisecond, Attempts: 2},
		Logger:      logger,
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	})
	return NewServer(orch, logger), rt
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "devpods", body["service"])
}

func TestListPodsAllStopped(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/pods")
	require.Equal(t, http.StatusOK, rec.Code)

	var statuses []orchestrator.PodStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 7)
	for _, st := range statuses {
		assert.Equal(t, orchestrator.StateStopped, st.State, st.Name)
	}
}

func TestUnknownPodIsNotFound(t *testing.T) {
	s, rt := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/pods/notapod").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/pods/notapod/up").Code)
	assert.Empty(t, rt.Pods)
}

func TestPodLifecycleOverHTTP(t *testing.T) {
	s, rt := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/pods/cache/up")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var st orchestrator.PodStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "redis", st.Key)
	assert.Equal(t, orchestrator.StateRunning, st.State)
	assert.Contains(t, rt.Pods, "devpods-redis")

	rec = do(t, s, http.MethodGet, "/pods/redis")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/pods/redis/down")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, orchestrator.StateStopped, st.State)

	rec = do(t, s, http.MethodPost, "/pods/redis/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rt.Pods)
}

func TestUpPullFailureReturnsRemediation(t *testing.T) {
	s, rt := newTestServer(t)
	rt.PullErrors["mirror.gcr.io/axllent/mailpit:latest"] = errors.New("dial tcp: i/o timeout")
	rt.PullErrors["axllent/mailpit:latest"] = errors.New("toomanyrequests: slow down")

	rec := do(t, s, http.MethodPost, "/pods/mail/up")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	assert.Contains(t, body.Remediation, "DEVPODS_REGISTRY_USERNAME")
	assert.Empty(t, rt.Pods)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodGet, "/pods/redis/up").Code)
}
