// Package preflight runs the host and runtime checks that must pass before
// devpods touches any container state.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedPlatform = errors.New("desteklenmeyen platform")
	ErrRuntimeUnavailable  = errors.New("container runtime bulunamadı")
	ErrRuntimeTooOld       = errors.New("container runtime sürümü çok eski")
)

// SupportedPlatforms lists the GOOS values devpods runs on
var SupportedPlatforms = []string{"linux", "darwin"}

// Engine is the runtime capability the checks need
type Engine interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)
}

// Activator tries to bring the runtime up, e.g. via socket activation
type Activator func(ctx context.Context) error

// CommandActivator runs argv as the activation step. An empty argv never activates.
func CommandActivator(argv []string) Activator {
	return func(ctx context.Context) error {
		if len(argv) == 0 {
			return errors.New("aktivasyon komutu tanımlı değil")
		}
		out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("%v: %w (%s)", argv, err, out)
		}
		return nil
	}
}

// Checker runs the preflight checks
type Checker struct {
	GOOS       string
	MinVersion string
	Activate   Activator
	Logger     *logrus.Logger
}

// NewChecker creates a checker for the current host
func NewChecker(minVersion string, activate Activator, logger *logrus.Logger) *Checker {
	return &Checker{
		GOOS:       runtime.GOOS,
		MinVersion: minVersion,
		Activate:   activate,
		Logger:     logger,
	}
}

// CheckPlatform fails on hosts other than SupportedPlatforms
func (c *Checker) CheckPlatform() error {
	for _, p := range SupportedPlatforms {
		if c.GOOS == p {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, c.GOOS)
}

// CheckRuntime pings the engine, tries activation once if it does not answer,
// then enforces the minimum version.
func (c *Checker) CheckRuntime(ctx context.Context, engine Engine) (string, error) {
	if err := engine.Ping(ctx); err != nil {
		c.Logger.WithError(err).Debug("Runtime yanıt vermedi, aktivasyon deneniyor")

		if c.Activate != nil {
			if actErr := c.Activate(ctx); actErr != nil {
				c.Logger.WithError(actErr).Warn("Runtime aktivasyonu başarısız, bu platformda gerekmiyor olabilir")
			}
		}

		if err := engine.Ping(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
		}
	}

	raw, err := engine.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}

	if err := CompareVersion(raw, c.MinVersion); err != nil {
		return raw, err
	}

	c.Logger.WithField("version", raw).Debug("Runtime sürümü uygun")
	return raw, nil
}

// CompareVersion fails when have is below minimum. Unparseable versions are rejected.
func CompareVersion(have, minimum string) error {
	if minimum == "" {
		return nil
	}

	minV, err := semver.NewVersion(minimum)
	if err != nil {
		return fmt.Errorf("geçersiz minimum sürüm %q: %w", minimum, err)
	}

	haveV, err := semver.NewVersion(have)
	if err != nil {
		return fmt.Errorf("%w: sürüm okunamadı %q", ErrRuntimeTooOld, have)
	}

	// pre-release tags (e.g. 27.0.0-rc.1) count as their release
	if haveV.Prerelease() != "" {
		stripped, err := haveV.SetPrerelease("")
		if err == nil {
			haveV = &stripped
		}
	}

	if haveV.LessThan(minV) {
		return fmt.Errorf("%w: %s < %s", ErrRuntimeTooOld, have, minimum)
	}
	return nil
}

// Run executes every check in order
func (c *Checker) Run(ctx context.Context, engine Engine) (string, error) {
	if err := c.CheckPlatform(); err != nil {
		return "", err
	}
	return c.CheckRuntime(ctx, engine)
}
