// Package orchestrator drives the pod lifecycle: up, down, reset and status.
//
// It holds no state of its own between calls. Every decision is derived from
// what the container runtime and the data root report at the time of the call,
// so repeated invocations converge on the same result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devpods/pkg/config"
	"devpods/pkg/container"
	"devpods/pkg/credentials"
	"devpods/pkg/pod"
	"devpods/pkg/storage"
	"devpods/pkg/ui"

	"github.com/sirupsen/logrus"
)

// ErrLivenessTimeout is returned when a clustered service never answers its liveness check
var ErrLivenessTimeout = errors.New("servis canlılık kontrolüne yanıt vermedi")

// State is the observed state of a pod
type State string

const (
	StateStopped  State = "stopped"
	StateDegraded State = "degraded"
	StateRunning  State = "running"
)

// PodStatus is one row of the status report
type PodStatus struct {
	Kind      pod.Kind `json:"-"`
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	State     State    `json:"state"`
	Endpoints string   `json:"endpoints"`
}

// ImagePreflight makes a set of images available locally or fails as a whole
type ImagePreflight interface {
	Preflight(ctx context.Context, refs []string) error
}

// SleepFunc waits d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options wires an Orchestrator
type Options struct {
	Runtime     container.Runtime
	Images      ImagePreflight
	Storage     *storage.Storage
	Credentials credentials.Set
	Health      config.PollConfig
	Bootstrap   config.PollConfig
	Logger      *logrus.Logger
	// Sleep and Now default to the wall clock
	Sleep SleepFunc
	Now   func() time.Time
}

// Orchestrator manages the fixed set of pods
type Orchestrator struct {
	runtime   container.Runtime
	images    ImagePreflight
	storage   *storage.Storage
	creds     credentials.Set
	health    config.PollConfig
	bootstrap config.PollConfig
	logger    *logrus.Logger
	sleep     SleepFunc
	now       func() time.Time
}

// New creates a new orchestrator
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		runtime:   opts.Runtime,
		images:    opts.Images,
		storage:   opts.Storage,
		creds:     opts.Credentials,
		health:    opts.Health,
		bootstrap: opts.Bootstrap,
		logger:    opts.Logger,
		sleep:     opts.Sleep,
		now:       opts.Now,
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Up brings a pod to the running state. Every image is resolved before any
// runtime object is created, so a pull failure leaves the pod untouched.
func (o *Orchestrator) Up(ctx context.Context, k pod.Kind) error {
	log := o.logger.WithField("pod", k.Name())
	services := k.Services(o.creds)

	if err := o.images.Preflight(ctx, k.Images(o.creds)); err != nil {
		return fmt.Errorf("%s için image'lar hazırlanamadı: %w", k.Name(), err)
	}

	if err := o.storage.EnsurePod(k, services); err != nil {
		return err
	}

	if err := o.ensurePod(ctx, k); err != nil {
		return err
	}

	for _, svc := range services {
		created, err := o.launch(ctx, k, services, svc)
		if err != nil {
			return err
		}

		if created {
			if _, err := o.WaitHealthy(ctx, k.ContainerName(svc.Name)); err != nil {
				return err
			}
		}

		if svc.Cluster != nil {
			if err := o.Bootstrap(ctx, k, svc); err != nil {
				return err
			}
		}
	}

	if path, err := o.storage.WriteCheatsheet(o.creds, o.now()); err != nil {
		log.WithError(err).Warn("Bağlantı özeti yazılamadı")
	} else {
		log.WithField("path", path).Debug("Bağlantı özeti güncellendi")
	}

	ui.OK(log).WithField("endpoints", k.Endpoints()).Info("Pod hazır")
	return nil
}

// ensurePod leaves a running pod alone, replaces a stopped one and creates a missing one
func (o *Orchestrator) ensurePod(ctx context.Context, k pod.Kind) error {
	name := k.Name()
	log := o.logger.WithField("pod", name)

	exists, err := o.runtime.PodExists(ctx, name)
	if err != nil {
		return fmt.Errorf("pod sorgulanamadı: %w", err)
	}

	if exists {
		running, err := o.runtime.PodRunning(ctx, name)
		if err != nil {
			return fmt.Errorf("pod sorgulanamadı: %w", err)
		}
		if running {
			log.Info("Pod zaten çalışıyor")
			return nil
		}

		log.Warn("Pod durmuş durumda, yeniden oluşturuluyor")
		if err := container.IgnoreNotFound(o.runtime.RemovePod(ctx, name)); err != nil {
			return fmt.Errorf("durmuş pod kaldırılamadı: %w", err)
		}
	}

	log.Info("Pod oluşturuluyor")
	if err := o.runtime.CreatePod(ctx, k.PodSpec()); err != nil {
		return fmt.Errorf("pod oluşturulamadı: %w", err)
	}
	return nil
}

// launch starts svc unless a container of the same name already exists
func (o *Orchestrator) launch(ctx context.Context, k pod.Kind, services []pod.Service, svc pod.Service) (bool, error) {
	name := k.ContainerName(svc.Name)
	log := o.logger.WithFields(logrus.Fields{
		"pod":     k.Name(),
		"service": svc.Name,
	})

	exists, err := o.runtime.ContainerExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("container sorgulanamadı: %w", err)
	}
	if exists {
		log.Info("Servis zaten mevcut, atlanıyor")
		return false, nil
	}

	spec := container.ContainerSpec{
		Name:        name,
		Pod:         k.Name(),
		Image:       svc.Image,
		Environment: svc.Env,
		Command:     svc.Command,
		HealthCheck: svc.HealthCheck,
	}
	if svc.Stateful() {
		spec.Volumes = []container.VolumeMount{{
			Source:      o.storage.ServiceDir(k, services, svc.Name),
			Destination: svc.MountPath,
		}}
	}

	log.WithField("image", svc.Image).Info("Servis başlatılıyor")
	if _, err := o.runtime.CreateContainer(ctx, spec); err != nil {
		return false, fmt.Errorf("%s başlatılamadı: %w", name, err)
	}
	return true, nil
}

// WaitHealthy polls a container until it reports healthy, or running when it
// declares no health check. Running out of attempts is only a warning.
func (o *Orchestrator) WaitHealthy(ctx context.Context, name string) (bool, error) {
	log := o.logger.WithField("container", name)

	for attempt := 1; attempt <= o.health.Attempts; attempt++ {
		state, err := o.runtime.ContainerState(ctx, name)
		if err != nil {
			return false, fmt.Errorf("container durumu okunamadı: %w", err)
		}

		if state.Health == container.HealthHealthy ||
			(state.Health == "" && state.Status == container.StatusRunning) {
			ui.OK(log).Info("Servis sağlıklı")
			return true, nil
		}

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"status":  state.Status,
			"health":  state.Health,
		}).Debug("Servis henüz hazır değil")

		if attempt < o.health.Attempts {
			if err := o.sleep(ctx, o.health.Interval); err != nil {
				return false, err
			}
		}
	}

	log.WithField("attempts", o.health.Attempts).Warn("Sağlık kontrolü zaman aşımına uğradı, devam ediliyor")
	return false, nil
}

// Bootstrap performs the one-time cluster initialisation of svc. It waits for
// the liveness check, then initiates the cluster only when the status query fails.
func (o *Orchestrator) Bootstrap(ctx context.Context, k pod.Kind, svc pod.Service) error {
	if svc.Cluster == nil {
		return nil
	}
	name := k.ContainerName(svc.Name)
	log := o.logger.WithField("container", name)

	if err := o.waitLive(ctx, name, svc.Cluster.Liveness); err != nil {
		return err
	}

	if ok, _ := o.execOK(ctx, name, svc.Cluster.Status); ok {
		log.Info("Küme zaten başlatılmış")
		return nil
	}

	log.Info("Küme başlatılıyor")
	ok, res := o.execOK(ctx, name, svc.Cluster.Initiate)
	if !ok {
		log.WithFields(logrus.Fields{
			"exit_code": res.ExitCode,
			"output":    res.Output,
		}).Warn("Küme başlatma komutu başarısız, küme zaten başlatılmış olabilir")
		return nil
	}

	ui.OK(log).Info("Küme başlatıldı")
	return nil
}

func (o *Orchestrator) waitLive(ctx context.Context, name string, check []string) error {
	for attempt := 1; attempt <= o.bootstrap.Attempts; attempt++ {
		ok, _ := o.execOK(ctx, name, check)
		if ok {
			return nil
		}
		if attempt < o.bootstrap.Attempts {
			if err := o.sleep(ctx, o.bootstrap.Interval); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: %s (%d deneme)", ErrLivenessTimeout, name, o.bootstrap.Attempts)
}

func (o *Orchestrator) execOK(ctx context.Context, name string, cmd []string) (bool, container.ExecResult) {
	res, err := o.runtime.Exec(ctx, name, cmd)
	if err != nil {
		o.logger.WithField("container", name).WithError(err).Debug("Komut çalıştırılamadı")
		return false, res
	}
	return res.ExitCode == 0, res
}

// Down stops and removes a pod. Data is kept. An absent pod is not an error.
func (o *Orchestrator) Down(ctx context.Context, k pod.Kind) error {
	name := k.Name()
	log := o.logger.WithField("pod", name)

	exists, err := o.runtime.PodExists(ctx, name)
	if err != nil {
		return fmt.Errorf("pod sorgulanamadı: %w", err)
	}
	if !exists {
		log.Info("Pod zaten kapalı")
		return nil
	}

	log.Info("Pod durduruluyor")
	if err := container.IgnoreNotFound(o.runtime.StopPod(ctx, name)); err != nil {
		return fmt.Errorf("pod durdurulamadı: %w", err)
	}
	if err := container.IgnoreNotFound(o.runtime.RemovePod(ctx, name)); err != nil {
		return fmt.Errorf("pod kaldırılamadı: %w", err)
	}

	ui.OK(log).Info("Pod kaldırıldı")
	return nil
}

// Reset tears a pod down and deletes its data directory
func (o *Orchestrator) Reset(ctx context.Context, k pod.Kind) error {
	if err := o.Down(ctx, k); err != nil {
		return err
	}

	removed, err := o.storage.ResetPod(k)
	if err != nil {
		return err
	}

	log := o.logger.WithFields(logrus.Fields{
		"pod":  k.Name(),
		"path": o.storage.PodDir(k),
	})
	if removed {
		ui.OK(log).Info("Pod verisi silindi")
	} else {
		log.Info("Silinecek veri yok")
	}
	return nil
}

// PodStatus reports the state of a single pod
func (o *Orchestrator) PodStatus(ctx context.Context, k pod.Kind) (PodStatus, error) {
	st := PodStatus{
		Kind:      k,
		Key:       k.Key(),
		Name:      k.Name(),
		Role:      k.Role(),
		State:     StateStopped,
		Endpoints: k.Endpoints(),
	}

	exists, err := o.runtime.PodExists(ctx, k.Name())
	if err != nil {
		return st, fmt.Errorf("pod sorgulanamadı: %w", err)
	}
	if !exists {
		return st, nil
	}

	running, err := o.runtime.PodRunning(ctx, k.Name())
	if err != nil {
		return st, fmt.Errorf("pod sorgulanamadı: %w", err)
	}
	if running {
		st.State = StateRunning
	} else {
		st.State = StateDegraded
	}
	return st, nil
}

// Status reports every pod in declaration order. It never mutates anything.
func (o *Orchestrator) Status(ctx context.Context) ([]PodStatus, error) {
	statuses := make([]PodStatus, 0, len(pod.All()))
	for _, k := range pod.All() {
		st, err := o.PodStatus(ctx, k)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
