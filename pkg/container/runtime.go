package container

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a pod, container or image does not exist
var ErrNotFound = errors.New("bulunamadı")

// Runtime is the set of container engine operations devpods needs.
// Manager implements it against the Docker Engine API; tests use a fake.
type Runtime interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)

	ImageExists(ctx context.Context, ref string) (bool, error)
	// PullImage pulls ref; encodedAuth may be empty for anonymous pulls
	PullImage(ctx context.Context, ref, encodedAuth string) error
	TagImage(ctx context.Context, source, target string) error
	RegistryLogin(ctx context.Context, auth RegistryAuth) error

	PodExists(ctx context.Context, name string) (bool, error)
	PodRunning(ctx context.Context, name string) (bool, error)
	CreatePod(ctx context.Context, spec PodSpec) error
	StopPod(ctx context.Context, name string) error
	RemovePod(ctx context.Context, name string) error

	ContainerExists(ctx context.Context, name string) (bool, error)
	// CreateContainer creates and starts a container inside its pod
	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	ContainerState(ctx context.Context, name string) (State, error)
	Exec(ctx context.Context, name string, cmd []string) (ExecResult, error)
}

// IgnoreNotFound swallows the "already absent" class of failure
func IgnoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
