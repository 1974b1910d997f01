package registry

import (
	"context"
	"errors"
	"io"
	"testing"

	"devpods/pkg/container/containertest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestIsMirrorable(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"postgres:16-alpine", true},
		{"docker.io/library/redis:7", true},
		{"redis/redis-stack:latest", true},
		{"registry.k8s.io/pause:3.9", false},
		{"ghcr.io/owner/app:1", false},
		{"localhost:5000/app", false},
		{"NOT A REF", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMirrorable(tt.ref))
		})
	}
}

func TestMirrorRef(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"postgres:16-alpine", "mirror.gcr.io/library/postgres:16-alpine"},
		{"mongo", "mirror.gcr.io/library/mongo:latest"},
		{"redis/redis-stack:latest", "mirror.gcr.io/redis/redis-stack:latest"},
		{"docker.io/datalust/seq:2024.3", "mirror.gcr.io/datalust/seq:2024.3"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := MirrorRef(tt.ref, "mirror.gcr.io/")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := MirrorRef("registry.k8s.io/pause:3.9", "mirror.gcr.io")
	assert.Error(t, err)
}

func TestCandidates(t *testing.T) {
	const mirror = "mirror.gcr.io"

	t.Run("unauthenticated hub image tries mirror then primary", func(t *testing.T) {
		got := Candidates("postgres:16-alpine", false, mirror)
		assert.Equal(t, []string{"mirror.gcr.io/library/postgres:16-alpine", "postgres:16-alpine"}, got)
	})

	t.Run("authenticated hub image tries primary only", func(t *testing.T) {
		got := Candidates("postgres:16-alpine", true, mirror)
		assert.Equal(t, []string{"postgres:16-alpine"}, got)
	})

	t.Run("non-hub image is used as-is", func(t *testing.T) {
		assert.Equal(t, []string{"registry.k8s.io/pause:3.9"}, Candidates("registry.k8s.io/pause:3.9", false, mirror))
		assert.Equal(t, []string{"registry.k8s.io/pause:3.9"}, Candidates("registry.k8s.io/pause:3.9", true, mirror))
	})

	t.Run("no mirror configured", func(t *testing.T) {
		assert.Equal(t, []string{"mongo:7"}, Candidates("mongo:7", false, ""))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		diag string
		want FailureKind
	}{
		{"toomanyrequests: You have reached your pull rate limit", FailureRateLimit},
		{"unauthorized: authentication required", FailureRateLimit},
		{"pull access denied for foo", FailureRateLimit},
		{"dial tcp: lookup registry-1.docker.io: no such host", FailureNetwork},
		{"net/http: TLS handshake timeout", FailureNetwork},
		{"manifest unknown", FailureOther},
	}

	for _, tt := range tests {
		t.Run(tt.diag, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.diag))
		})
	}
}

func TestCheckAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("no credentials skips the network", func(t *testing.T) {
		rt := containertest.New()
		auth := CheckAuth(ctx, rt, "", "", quietLogger())
		assert.False(t, auth.Authenticated)
		assert.Empty(t, rt.Logins)
	})

	t.Run("valid credentials", func(t *testing.T) {
		rt := containertest.New()
		auth := CheckAuth(ctx, rt, "octocat", "token", quietLogger())
		assert.True(t, auth.Authenticated)
		assert.NotEmpty(t, auth.Encoded)
		require.Len(t, rt.Logins, 1)
		assert.Equal(t, HubServerAddress, rt.Logins[0].ServerAddress)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		rt := containertest.New()
		rt.LoginErr = errors.New("unauthorized: incorrect username or password")
		auth := CheckAuth(ctx, rt, "octocat", "wrong", quietLogger())
		assert.False(t, auth.Authenticated)
		assert.Empty(t, auth.Encoded)
	})
}

func TestEnsureLocalImageSkipsNetwork(t *testing.T) {
	rt := containertest.New()
	rt.Images["postgres:16-alpine"] = true

	a := NewAcquirer(rt, Auth{}, "mirror.gcr.io", quietLogger())
	require.NoError(t, a.Ensure(context.Background(), "postgres:16-alpine"))
	assert.Empty(t, rt.Pulls)
}

func TestEnsureMirrorSuccessIsTaggedCanonical(t *testing.T) {
	rt := containertest.New()

	a := NewAcquirer(rt, Auth{}, "mirror.gcr.io", quietLogger())
	require.NoError(t, a.Ensure(context.Background(), "mongo:7"))

	assert.Equal(t, []string{"mirror.gcr.io/library/mongo:7"}, rt.Pulls)
	assert.Equal(t, [][2]string{{"mirror.gcr.io/library/mongo:7", "mongo:7"}}, rt.Tags)
	assert.True(t, rt.Images["mongo:7"])
}

func TestEnsureFallsBackToPrimary(t *testing.T) {
	rt := containertest.New()
	rt.PullErrors["mirror.gcr.io/library/mongo:7"] = errors.New("manifest unknown")

	a := NewAcquirer(rt, Auth{}, "mirror.gcr.io", quietLogger())
	require.NoError(t, a.Ensure(context.Background(), "mongo:7"))

	assert.Equal(t, []string{"mirror.gcr.io/library/mongo:7", "mongo:7"}, rt.Pulls)
	assert.Empty(t, rt.Tags)
	assert.Equal(t, []string{"", ""}, rt.PullAuths)
}

func TestEnsureAuthenticatedUsesPrimaryWithAuth(t *testing.T) {
	rt := containertest.New()

	a := NewAcquirer(rt, Auth{Authenticated: true, Encoded: "abc"}, "mirror.gcr.io", quietLogger())
	require.NoError(t, a.Ensure(context.Background(), "rabbitmq:3-management"))

	assert.Equal(t, []string{"rabbitmq:3-management"}, rt.Pulls)
	assert.Equal(t, []string{"abc"}, rt.PullAuths)
}

func TestEnsureNonHubImageNeverGetsHubAuth(t *testing.T) {
	rt := containertest.New()

	a := NewAcquirer(rt, Auth{Authenticated: true, Encoded: "hubcreds"}, "mirror.gcr.io", quietLogger())
	require.NoError(t, a.Ensure(context.Background(), "registry.k8s.io/pause:3.9"))

	assert.Equal(t, []string{"registry.k8s.io/pause:3.9"}, rt.Pulls)
	assert.Equal(t, []string{""}, rt.PullAuths)
}

func TestEnsureAllCandidatesFail(t *testing.T) {
	rt := containertest.New()
	rt.PullErrors["mirror.gcr.io/library/nats:2.10-alpine"] = errors.New("dial tcp: i/o timeout")
	rt.PullErrors["nats:2.10-alpine"] = errors.New("toomanyrequests: rate limit reached")

	a := NewAcquirer(rt, Auth{}, "mirror.gcr.io", quietLogger())
	err := a.Ensure(context.Background(), "nats:2.10-alpine")
	require.Error(t, err)

	var pullErr *PullError
	require.ErrorAs(t, err, &pullErr)
	require.Len(t, pullErr.Attempts, 2)
	assert.Equal(t, FailureNetwork, pullErr.Attempts[0].Kind)
	assert.Equal(t, FailureRateLimit, pullErr.Attempts[1].Kind)
	assert.True(t, pullErr.RateLimited())
	assert.Contains(t, pullErr.Remediation(), "DEVPODS_REGISTRY_USERNAME")
	assert.False(t, rt.Images["nats:2.10-alpine"])
}

func TestGenericFailureRemediation(t *testing.T) {
	err := &PullError{Ref: "x", Attempts: []Attempt{{Ref: "x", Kind: FailureNetwork, Err: errors.New("eof")}}}
	assert.False(t, err.RateLimited())
	assert.NotContains(t, err.Remediation(), "DEVPODS_REGISTRY_USERNAME")
}

func TestPreflightStopsAtFirstFailure(t *testing.T) {
	rt := containertest.New()
	rt.PullErrors["registry.k8s.io/pause:3.9"] = errors.New("no such host")

	a := NewAcquirer(rt, Auth{}, "mirror.gcr.io", quietLogger())
	err := a.Preflight(context.Background(), []string{"registry.k8s.io/pause:3.9", "postgres:16-alpine"})
	require.Error(t, err)
	assert.Equal(t, []string{"registry.k8s.io/pause:3.9"}, rt.Pulls)
}
