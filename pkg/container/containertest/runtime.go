// Package containertest provides an in-memory container.Runtime for tests.
package containertest

import (
	"context"
	"fmt"
	"sync"

	"devpods/pkg/container"
)

var _ container.Runtime = (*Runtime)(nil)

// Pod is the fake's record of a container group
type Pod struct {
	Spec    container.PodSpec
	Running bool
}

// Container is the fake's record of a service container
type Container struct {
	Spec  container.ContainerSpec
	State container.State
}

// Runtime is a scriptable fake of container.Runtime.
// Set the exported hooks before use; read the recorded calls afterwards.
// RemoveFunc runs at the start of RemovePod with the fake locked, so it may
// edit Pods and Containers directly; a non-nil error is returned as-is.
type Runtime struct {
	mu sync.Mutex

	ServerVersion string
	PingErr       error
	LoginErr      error

	Images      map[string]bool
	PullErrors  map[string]error
	CreateErrs  map[string]error
	StopErr     error
	RemoveErr   error
	Pods        map[string]*Pod
	Containers  map[string]*Container
	StateFunc   func(name string, calls int) container.State
	ExecFunc    func(name string, cmd []string) (container.ExecResult, error)
	RemoveFunc  func(name string) error
	Pulls       []string
	PullAuths   []string
	Tags        [][2]string
	Logins      []container.RegistryAuth
	Execs       [][]string
	stateCalls  map[string]int
	createCalls int
}

// New returns an empty fake runtime reporting version 24.0.7
func New() *Runtime {
	return &Runtime{
		ServerVersion: "24.0.7",
		Images:        map[string]bool{},
		PullErrors:    map[string]error{},
		CreateErrs:    map[string]error{},
		Pods:          map[string]*Pod{},
		Containers:    map[string]*Container{},
		stateCalls:    map[string]int{},
	}
}

func (r *Runtime) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.PingErr
}

func (r *Runtime) Version(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ServerVersion, nil
}

func (r *Runtime) ImageExists(ctx context.Context, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Images[ref], nil
}

func (r *Runtime) PullImage(ctx context.Context, ref, encodedAuth string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pulls = append(r.Pulls, ref)
	r.PullAuths = append(r.PullAuths, encodedAuth)
	if err := r.PullErrors[ref]; err != nil {
		return err
	}
	r.Images[ref] = true
	return nil
}

func (r *Runtime) TagImage(ctx context.Context, source, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.Images[source] {
		return fmt.Errorf("image %s: %w", source, container.ErrNotFound)
	}
	r.Tags = append(r.Tags, [2]string{source, target})
	r.Images[target] = true
	return nil
}

func (r *Runtime) RegistryLogin(ctx context.Context, auth container.RegistryAuth) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Logins = append(r.Logins, auth)
	return r.LoginErr
}

// PodExists is true while the infra container or any member of the pod remains
func (r *Runtime) PodExists(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.podPresent(name), nil
}

func (r *Runtime) podPresent(name string) bool {
	if _, ok := r.Pods[name]; ok {
		return true
	}
	for _, c := range r.Containers {
		if c.Spec.Pod == name {
			return true
		}
	}
	return false
}

func (r *Runtime) PodRunning(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pod, ok := r.Pods[name]
	return ok && pod.Running, nil
}

func (r *Runtime) CreatePod(ctx context.Context, spec container.PodSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Pods[spec.Name]; ok {
		return fmt.Errorf("pod %s zaten mevcut", spec.Name)
	}
	if !r.Images[spec.InfraImage] {
		return fmt.Errorf("image %s: %w", spec.InfraImage, container.ErrNotFound)
	}
	r.Pods[spec.Name] = &Pod{Spec: spec, Running: true}
	return nil
}

func (r *Runtime) StopPod(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.podPresent(name) {
		return fmt.Errorf("pod %s: %w", name, container.ErrNotFound)
	}
	if r.StopErr != nil {
		return r.StopErr
	}
	if pod, ok := r.Pods[name]; ok {
		pod.Running = false
	}
	for _, c := range r.Containers {
		if c.Spec.Pod == name {
			c.State.Status = "exited"
		}
	}
	return nil
}

func (r *Runtime) RemovePod(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.RemoveFunc != nil {
		if err := r.RemoveFunc(name); err != nil {
			return err
		}
	}
	if !r.podPresent(name) {
		return fmt.Errorf("pod %s: %w", name, container.ErrNotFound)
	}
	if r.RemoveErr != nil {
		return r.RemoveErr
	}
	delete(r.Pods, name)
	for id, c := range r.Containers {
		if c.Spec.Pod == name {
			delete(r.Containers, id)
		}
	}
	return nil
}

func (r *Runtime) ContainerExists(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.Containers[name]
	return ok, nil
}

func (r *Runtime) CreateContainer(ctx context.Context, spec container.ContainerSpec) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if err := r.CreateErrs[spec.Name]; err != nil {
		return "", err
	}
	if _, ok := r.Pods[spec.Pod]; !ok {
		return "", fmt.Errorf("pod %s: %w", spec.Pod, container.ErrNotFound)
	}
	if !r.Images[spec.Image] {
		return "", fmt.Errorf("image %s: %w", spec.Image, container.ErrNotFound)
	}
	if _, ok := r.Containers[spec.Name]; ok {
		return "", fmt.Errorf("container %s zaten mevcut", spec.Name)
	}

	state := container.State{Status: container.StatusRunning}
	if spec.HealthCheck != nil {
		state.Health = container.HealthHealthy
	}
	r.Containers[spec.Name] = &Container{Spec: spec, State: state}
	return "id-" + spec.Name, nil
}

func (r *Runtime) ContainerState(ctx context.Context, name string) (container.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Containers[name]
	if !ok {
		return container.State{}, fmt.Errorf("container %s: %w", name, container.ErrNotFound)
	}
	r.stateCalls[name]++
	if r.StateFunc != nil {
		return r.StateFunc(name, r.stateCalls[name]), nil
	}
	return c.State, nil
}

func (r *Runtime) Exec(ctx context.Context, name string, cmd []string) (container.ExecResult, error) {
	r.mu.Lock()
	if _, ok := r.Containers[name]; !ok {
		r.mu.Unlock()
		return container.ExecResult{}, fmt.Errorf("container %s: %w", name, container.ErrNotFound)
	}
	r.Execs = append(r.Execs, cmd)
	fn := r.ExecFunc
	r.mu.Unlock()

	if fn == nil {
		return container.ExecResult{}, nil
	}
	return fn(name, cmd)
}

// CreateCalls returns how many CreateContainer calls were made
func (r *Runtime) CreateCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createCalls
}

// ContainersInPod returns the names of the pod's service containers
func (r *Runtime) ContainersInPod(pod string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name, c := range r.Containers {
		if c.Spec.Pod == pod {
			names = append(names, name)
		}
	}
	return names
}
