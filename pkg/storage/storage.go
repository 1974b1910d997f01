package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"devpods/pkg/pod"

	"github.com/sirupsen/logrus"
)

// Storage owns the on-disk data root: one directory per pod plus the
// credentials file and the connection cheatsheet.
type Storage struct {
	dataDir string
	logger  *logrus.Logger
}

// NewStorage creates a new storage instance
func NewStorage(dataDir string, logger *logrus.Logger) (*Storage, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("data dizini çözümlenemedi: %w", err)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("data dizini oluşturulamadı: %w", err)
	}

	return &Storage{
		dataDir: abs,
		logger:  logger,
	}, nil
}

// DataDir returns the absolute data root
func (s *Storage) DataDir() string {
	return s.dataDir
}

// PodDir returns the data directory of a pod
func (s *Storage) PodDir(k pod.Kind) string {
	return filepath.Join(s.dataDir, k.Key())
}

// ServiceDir returns where a service's data lives. Pods with a single stateful
// service use the pod directory itself; otherwise each service gets a sub-directory.
func (s *Storage) ServiceDir(k pod.Kind, services []pod.Service, name string) string {
	stateful := 0
	for _, svc := range services {
		if svc.Stateful() {
			stateful++
		}
	}
	if stateful > 1 {
		return filepath.Join(s.PodDir(k), name)
	}
	return s.PodDir(k)
}

// EnsurePod creates the pod's data directories
func (s *Storage) EnsurePod(k pod.Kind, services []pod.Service) error {
	if err := os.MkdirAll(s.PodDir(k), 0755); err != nil {
		return fmt.Errorf("pod dizini oluşturulamadı (%s): %w", k, err)
	}

	for _, svc := range services {
		if !svc.Stateful() {
			continue
		}
		dir := s.ServiceDir(k, services, svc.Name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("servis dizini oluşturulamadı (%s): %w", svc.Name, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"pod": k.Key(),
		"dir": s.PodDir(k),
	}).Debug("Pod dizini hazır")

	return nil
}

// PodDirExists reports whether the pod's data directory is present
func (s *Storage) PodDirExists(k pod.Kind) (bool, error) {
	info, err := os.Stat(s.PodDir(k))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("pod dizini okunamadı (%s): %w", k, err)
	}
	return info.IsDir(), nil
}

// ResetPod deletes the pod's data directory recursively. A missing directory is not an error.
func (s *Storage) ResetPod(k pod.Kind) (bool, error) {
	exists, err := s.PodDirExists(k)
	if err != nil || !exists {
		return false, err
	}

	if err := os.RemoveAll(s.PodDir(k)); err != nil {
		return false, fmt.Errorf("pod dizini silinemedi (%s): %w", k, err)
	}

	s.logger.WithFields(logrus.Fields{
		"pod": k.Key(),
		"dir": s.PodDir(k),
	}).Info("Pod verisi silindi")

	return true, nil
}
