// Package registry resolves image references to pull candidates and makes
// sure images are present locally before any container needs them.
package registry

import (
	"context"
	"fmt"
	"strings"

	"devpods/pkg/container"

	"github.com/distribution/reference"
	registrytypes "github.com/docker/docker/api/types/registry"
	"github.com/sirupsen/logrus"
)

const (
	// HubDomain is the normalised domain of the primary hub
	HubDomain = "docker.io"
	// HubServerAddress is the login endpoint of the primary hub
	HubServerAddress = "https://index.docker.io/v1/"
)

// IsMirrorable reports whether ref lives under the primary hub namespace
func IsMirrorable(ref string) bool {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return false
	}
	return reference.Domain(named) == HubDomain
}

// MirrorRef rewrites a hub reference onto mirror, keeping path, tag and digest.
// postgres:16 on mirror.gcr.io becomes mirror.gcr.io/library/postgres:16.
func MirrorRef(ref, mirror string) (string, error) {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", fmt.Errorf("geçersiz image referansı %q: %w", ref, err)
	}
	if reference.Domain(named) != HubDomain {
		return "", fmt.Errorf("%s hub altında değil, mirror kullanılamaz", ref)
	}

	named = reference.TagNameOnly(named)
	out := strings.TrimSuffix(mirror, "/") + "/" + reference.Path(named)
	if tagged, ok := named.(reference.Tagged); ok {
		out += ":" + tagged.Tag()
	}
	if digested, ok := named.(reference.Digested); ok {
		out += "@" + digested.Digest().String()
	}
	return out, nil
}

// Candidates returns the ordered references to try for ref.
// Non-hub references and authenticated runs use ref only; anonymous hub pulls
// go through the mirror first and fall back to the hub.
func Candidates(ref string, authenticated bool, mirror string) []string {
	if authenticated || mirror == "" || !IsMirrorable(ref) {
		return []string{ref}
	}
	mirrored, err := MirrorRef(ref, mirror)
	if err != nil {
		return []string{ref}
	}
	return []string{mirrored, ref}
}

// Auth is the result of the once-per-run hub authentication check
type Auth struct {
	Authenticated bool
	// Encoded is the X-Registry-Auth header value for hub pulls
	Encoded string
}

// Login is the runtime capability the auth check needs
type Login interface {
	RegistryLogin(ctx context.Context, auth container.RegistryAuth) error
}

// CheckAuth checks hub credentials once. Missing credentials mean an anonymous
// run without any network call; a failed login is logged and treated the same.
func CheckAuth(ctx context.Context, rt Login, username, password string, logger *logrus.Logger) Auth {
	if username == "" || password == "" {
		logger.Debug("Hub kimlik bilgisi yok, anonim çekim kullanılacak")
		return Auth{}
	}

	creds := container.RegistryAuth{
		Username:      username,
		Password:      password,
		ServerAddress: HubServerAddress,
	}
	if err := rt.RegistryLogin(ctx, creds); err != nil {
		logger.WithError(err).Warn("Hub girişi başarısız, mirror üzerinden anonim çekim kullanılacak")
		return Auth{}
	}

	encoded, err := registrytypes.EncodeAuthConfig(registrytypes.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: HubServerAddress,
	})
	if err != nil {
		logger.WithError(err).Warn("Hub kimlik bilgisi kodlanamadı")
		return Auth{}
	}

	logger.WithField("user", username).Debug("Hub girişi doğrulandı")
	return Auth{Authenticated: true, Encoded: encoded}
}
