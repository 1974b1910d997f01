package container

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"
)

var _ Runtime = (*Manager)(nil)

// Manager handles container operations through the Docker Engine API
type Manager struct {
	client *client.Client
	logger *logrus.Logger
}

// NewManager creates a new container manager. An empty host uses DOCKER_HOST
// or the platform default socket.
func NewManager(host string, logger *logrus.Logger) (*Manager, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client oluşturulamadı: %w", err)
	}

	return &Manager{
		client: cli,
		logger: logger,
	}, nil
}

// Close releases the underlying client
func (m *Manager) Close() error {
	return m.client.Close()
}

// Ping checks that the engine answers
func (m *Manager) Ping(ctx context.Context) error {
	if _, err := m.client.Ping(ctx); err != nil {
		return fmt.Errorf("container runtime'a ulaşılamadı: %w", err)
	}
	return nil
}

// Version returns the engine version string
func (m *Manager) Version(ctx context.Context) (string, error) {
	v, err := m.client.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("runtime sürümü alınamadı: %w", err)
	}
	return v.Version, nil
}

// ImageExists reports whether ref is present locally
func (m *Manager) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := m.client.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("image incelenemedi (%s): %w", ref, err)
	}
	return true, nil
}

// PullImage pulls ref and drains the progress stream. Errors reported inside
// the stream (rate limits, auth failures) are returned with their original text.
func (m *Manager) PullImage(ctx context.Context, ref, encodedAuth string) error {
	reader, err := m.client.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: encodedAuth})
	if err != nil {
		return fmt.Errorf("image çekilemedi (%s): %w", ref, err)
	}
	defer reader.Close()

	progress := m.logger.WriterLevel(logrus.DebugLevel)
	defer progress.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(reader, progress, 0, false, nil); err != nil {
		return fmt.Errorf("image çekilemedi (%s): %w", ref, err)
	}

	m.logger.WithField("image", ref).Info("Image çekildi")
	return nil
}

// TagImage tags source as target
func (m *Manager) TagImage(ctx context.Context, source, target string) error {
	if err := m.client.ImageTag(ctx, source, target); err != nil {
		return fmt.Errorf("image etiketlenemedi (%s -> %s): %w", source, target, err)
	}

	m.logger.WithFields(logrus.Fields{
		"source": source,
		"target": target,
	}).Debug("Image etiketlendi")
	return nil
}

// RegistryLogin validates credentials against a registry
func (m *Manager) RegistryLogin(ctx context.Context, auth RegistryAuth) error {
	_, err := m.client.RegistryLogin(ctx, registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		ServerAddress: auth.ServerAddress,
	})
	if err != nil {
		return fmt.Errorf("registry girişi başarısız: %w", err)
	}
	return nil
}

// PodExists reports whether any container labelled for the pod remains.
// Members left behind by a vanished infra container count, so teardown still finds them.
func (m *Manager) PodExists(ctx context.Context, name string) (bool, error) {
	ids, err := m.podContainers(ctx, name)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// PodRunning reports whether the pod's infra container is running
func (m *Manager) PodRunning(ctx context.Context, name string) (bool, error) {
	inspect, err := m.client.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("pod incelenemedi (%s): %w", name, err)
	}
	return inspect.State != nil && inspect.State.Running, nil
}

// CreatePod creates and starts the infra container holding the pod's ports
func (m *Manager) CreatePod(ctx context.Context, spec PodSpec) error {
	portBindings := nat.PortMap{}
	exposedPorts := nat.PortSet{}

	for _, p := range spec.Ports {
		protocol := p.Protocol
		if protocol == "" {
			protocol = "tcp"
		}

		port, err := nat.NewPort(protocol, strconv.Itoa(p.Container))
		if err != nil {
			return fmt.Errorf("geçersiz port: %d/%s", p.Container, protocol)
		}

		exposedPorts[port] = struct{}{}
		portBindings[port] = append(portBindings[port], nat.PortBinding{
			HostIP:   "0.0.0.0",
			HostPort: strconv.Itoa(p.Host),
		})
	}

	config := &container.Config{
		Image:        spec.InfraImage,
		ExposedPorts: exposedPorts,
		Labels: map[string]string{
			LabelPod:  spec.Name,
			LabelRole: RoleInfra,
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
	}

	resp, err := m.client.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, nil, spec.Name)
	if err != nil {
		return fmt.Errorf("pod oluşturulamadı (%s): %w", spec.Name, err)
	}

	if err := m.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("pod başlatılamadı (%s): %w", spec.Name, err)
	}

	m.logger.WithFields(logrus.Fields{
		"pod":          spec.Name,
		"container_id": resp.ID,
		"ports":        len(spec.Ports),
	}).Info("Pod oluşturuldu")

	return nil
}

// StopPod stops every container of the pod, members first
func (m *Manager) StopPod(ctx context.Context, name string) error {
	ids, err := m.podContainers(ctx, name)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("pod %s: %w", name, ErrNotFound)
	}

	timeout := 10
	for _, id := range ids {
		if err := m.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("container durdurulamadı (%s): %w", id, err)
		}
	}

	m.logger.WithField("pod", name).Info("Pod durduruldu")
	return nil
}

// RemovePod force-removes every container of the pod, members first
func (m *Manager) RemovePod(ctx context.Context, name string) error {
	ids, err := m.podContainers(ctx, name)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("pod %s: %w", name, ErrNotFound)
	}

	for _, id := range ids {
		if err := m.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("container silinemedi (%s): %w", id, err)
		}
	}

	m.logger.WithField("pod", name).Info("Pod silindi")
	return nil
}

// podContainers lists the pod's containers with service members before the infra container
func (m *Manager) podContainers(ctx context.Context, pod string) ([]string, error) {
	containers, err := m.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", LabelPod+"="+pod)),
	})
	if err != nil {
		return nil, fmt.Errorf("container listesi alınamadı: %w", err)
	}

	var members, infra []string
	for _, c := range containers {
		if c.Labels[LabelRole] == RoleInfra {
			infra = append(infra, c.ID)
		} else {
			members = append(members, c.ID)
		}
	}
	return append(members, infra...), nil
}

// ContainerExists reports whether a container with this name exists
func (m *Manager) ContainerExists(ctx context.Context, name string) (bool, error) {
	_, err := m.client.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("container incelenemedi (%s): %w", name, err)
	}
	return true, nil
}

// CreateContainer creates a service container joined to its pod's namespace and starts it
func (m *Manager) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	env := make([]string, 0, len(spec.Environment))
	for key, value := range spec.Environment {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	config := &container.Config{
		Image: spec.Image,
		Env:   env,
		Labels: map[string]string{
			LabelPod:  spec.Pod,
			LabelRole: RoleService,
		},
	}

	if len(spec.Command) > 0 {
		config.Cmd = spec.Command
	}

	if hc := spec.HealthCheck; hc != nil {
		config.Healthcheck = &container.HealthConfig{
			Test:        hc.Test,
			Interval:    hc.Interval,
			Timeout:     hc.Timeout,
			StartPeriod: hc.StartPeriod,
			Retries:     hc.Retries,
		}
	}

	mounts := make([]mount.Mount, 0, len(spec.Volumes))
	for _, v := range spec.Volumes {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   v.Source,
			Target:   v.Destination,
			ReadOnly: v.ReadOnly,
		})
	}

	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode("container:" + spec.Pod),
		Mounts:      mounts,
	}

	resp, err := m.client.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("docker container oluşturulamadı (%s): %w", spec.Name, err)
	}

	if err := m.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("container başlatılamadı (%s): %w", spec.Name, err)
	}

	m.logger.WithFields(logrus.Fields{
		"container_id": resp.ID,
		"name":         spec.Name,
		"pod":          spec.Pod,
		"image":        spec.Image,
	}).Info("Container oluşturuldu")

	return resp.ID, nil
}

// ContainerState returns the runtime status and health of a container
func (m *Manager) ContainerState(ctx context.Context, name string) (State, error) {
	inspect, err := m.client.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return State{}, fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return State{}, fmt.Errorf("container incelenemedi (%s): %w", name, err)
	}

	var state State
	if inspect.State != nil {
		state.Status = inspect.State.Status
		if inspect.State.Health != nil {
			state.Health = inspect.State.Health.Status
		}
	}
	return state, nil
}

// Exec runs cmd inside a container and waits for it to exit
func (m *Manager) Exec(ctx context.Context, name string, cmd []string) (ExecResult, error) {
	created, err := m.client.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ExecResult{}, fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return ExecResult{}, fmt.Errorf("exec oluşturulamadı (%s): %w", name, err)
	}

	attach, err := m.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec bağlanamadı (%s): %w", name, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return ExecResult{}, fmt.Errorf("exec çıktısı okunamadı (%s): %w", name, err)
	}

	inspect, err := m.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec incelenemedi (%s): %w", name, err)
	}

	m.logger.WithFields(logrus.Fields{
		"container": name,
		"cmd":       cmd[0],
		"exit_code": inspect.ExitCode,
	}).Debug("Exec tamamlandı")

	return ExecResult{
		ExitCode: inspect.ExitCode,
		Output:   stdout.String() + stderr.String(),
	}, nil
}
