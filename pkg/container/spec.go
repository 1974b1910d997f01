package container

import "time"

// Labels put on every container devpods creates
const (
	LabelPod  = "devpods.pod"
	LabelRole = "devpods.role"

	RoleInfra   = "infra"
	RoleService = "service"
)

// PortMapping publishes a container port on the host
type PortMapping struct {
	Host      int    `json:"host"`
	Container int    `json:"container"`
	Protocol  string `json:"protocol,omitempty"`
}

// PodSpec defines a container group sharing one network namespace.
// The infra container owns the namespace and every published port.
type PodSpec struct {
	Name       string        `json:"name"`
	InfraImage string        `json:"infra_image"`
	Ports      []PortMapping `json:"ports,omitempty"`
}

// ContainerSpec defines a service container launched into a pod
type ContainerSpec struct {
	Name        string            `json:"name"`
	Pod         string            `json:"pod"`
	Image       string            `json:"image"`
	Environment map[string]string `json:"environment,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Volumes     []VolumeMount     `json:"volumes,omitempty"`
	HealthCheck *HealthCheck      `json:"health_check,omitempty"`
}

// VolumeMount defines a bind mount
type VolumeMount struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	ReadOnly    bool   `json:"read_only,omitempty"`
}

// HealthCheck is evaluated by the runtime inside the container
type HealthCheck struct {
	Test        []string      `json:"test"`
	Interval    time.Duration `json:"interval,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	StartPeriod time.Duration `json:"start_period,omitempty"`
	Retries     int           `json:"retries,omitempty"`
}

// State is what the runtime reports for one container
type State struct {
	Status string `json:"status"`
	// Health is empty when the container declares no health check
	Health string `json:"health,omitempty"`
}

// Runtime status values
const (
	StatusRunning = "running"
	HealthHealthy = "healthy"
)

// ExecResult is the outcome of a command run inside a container
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

// RegistryAuth holds registry credentials
type RegistryAuth struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ServerAddress string `json:"server_address"`
}
