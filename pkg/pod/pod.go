// Package pod is the fixed catalogue of service groups devpods manages.
//
// Every pod is a Kind. A Kind carries its port map, its services and their
// launch parameters as data, so adding a pod means adding one entry to
// definitions and one constant.
package pod

import (
	"errors"
	"fmt"
	"strings"

	"devpods/pkg/container"
	"devpods/pkg/credentials"
)

// InfraImage is the pause image holding each pod's network namespace
const InfraImage = "registry.k8s.io/pause:3.9"

// NamePrefix is prepended to every pod and container name
const NamePrefix = "devpods-"

// ErrUnknownPod is returned for an alias that names no pod
var ErrUnknownPod = errors.New("bilinmeyen pod")

// Kind identifies one of the fixed pods
type Kind int

const (
	Postgres Kind = iota
	Mongo
	Redis
	Mail
	Seq
	RabbitMQ
	NATS
)

// Service is one container launched into a pod
type Service struct {
	Name    string
	Image   string
	Env     map[string]string
	Command []string
	// MountPath is where the service's data directory is mounted; empty for stateless services
	MountPath   string
	HealthCheck *container.HealthCheck
	// Cluster is set on the service that needs a one-time cluster initialisation
	Cluster *Cluster
}

// Cluster holds the commands run inside the container to bootstrap a cluster.
// Each command signals success with exit code 0.
type Cluster struct {
	Liveness []string
	Status   []string
	Initiate []string
}

// Stateful reports whether the service persists data
func (s Service) Stateful() bool {
	return s.MountPath != ""
}

type definition struct {
	key       string
	role      string
	aliases   []string
	ports     []container.PortMapping
	endpoints string
	services  func(creds credentials.Set) []Service
}

// All returns every pod in declaration order
func All() []Kind {
	return []Kind{Postgres, Mongo, Redis, Mail, Seq, RabbitMQ, NATS}
}

func (k Kind) def() definition {
	d, ok := definitions[k]
	if !ok {
		panic(fmt.Sprintf("pod: tanımsız kind %d", int(k)))
	}
	return d
}

// Key is the short identifier used for data directories and the command line
func (k Kind) Key() string {
	return k.def().key
}

// String implements fmt.Stringer
func (k Kind) String() string {
	return k.Key()
}

// Name is the pod's name in the container runtime
func (k Kind) Name() string {
	return NamePrefix + k.def().key
}

// Role is the generic role this pod plays (database-relational, cache-kv, ...)
func (k Kind) Role() string {
	return k.def().role
}

// Aliases returns every accepted command line name for the pod
func (k Kind) Aliases() []string {
	d := k.def()
	return append([]string{d.key}, d.aliases...)
}

// Ports returns the declared host:container port map
func (k Kind) Ports() []container.PortMapping {
	return append([]container.PortMapping(nil), k.def().ports...)
}

// Endpoints is the static endpoint description shown by status
func (k Kind) Endpoints() string {
	return k.def().endpoints
}

// Services renders the pod's services from the credential set
func (k Kind) Services(creds credentials.Set) []Service {
	return k.def().services(creds)
}

// Clustered reports whether the pod needs the cluster bootstrap
func (k Kind) Clustered() bool {
	for _, s := range k.Services(credentials.Defaults()) {
		if s.Cluster != nil {
			return true
		}
	}
	return false
}

// PodSpec returns the runtime spec of the pod itself
func (k Kind) PodSpec() container.PodSpec {
	return container.PodSpec{
		Name:       k.Name(),
		InfraImage: InfraImage,
		Ports:      k.Ports(),
	}
}

// ContainerName is the runtime name of a service container in this pod
func (k Kind) ContainerName(service string) string {
	return k.Name() + "-" + service
}

// Images returns every image the pod needs, infra image first, without duplicates
func (k Kind) Images(creds credentials.Set) []string {
	images := []string{InfraImage}
	seen := map[string]bool{InfraImage: true}
	for _, s := range k.Services(creds) {
		if !seen[s.Image] {
			seen[s.Image] = true
			images = append(images, s.Image)
		}
	}
	return images
}

// Lookup resolves a command line alias to a pod
func Lookup(alias string) (Kind, error) {
	needle := strings.ToLower(strings.TrimSpace(alias))
	for _, k := range All() {
		for _, a := range k.Aliases() {
			if a == needle {
				return k, nil
			}
		}
		if needle == k.Name() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPod, alias)
}

// Resolve maps a target argument to pods; "all" or empty selects every pod
func Resolve(target string) ([]Kind, error) {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" || t == "all" {
		return All(), nil
	}
	k, err := Lookup(t)
	if err != nil {
		return nil, err
	}
	return []Kind{k}, nil
}
