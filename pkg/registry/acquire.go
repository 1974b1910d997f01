package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// FailureKind classifies a pull failure by its diagnostic text.
// It only selects the help text shown; retry behaviour is the same for all kinds.
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureNetwork
	FailureRateLimit
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimit:
		return "rate-limit"
	case FailureNetwork:
		return "network"
	default:
		return "other"
	}
}

var rateLimitMarkers = []string{
	"toomanyrequests",
	"too many requests",
	"rate limit",
	"pull rate",
	"unauthorized",
	"authentication required",
	"denied",
}

var networkMarkers = []string{
	"no such host",
	"connection refused",
	"connection reset",
	"i/o timeout",
	"timeout",
	"network is unreachable",
	"tls handshake",
	"eof",
}

// Classify inspects a pull diagnostic for rate-limit or network markers
func Classify(diagnostic string) FailureKind {
	d := strings.ToLower(diagnostic)
	for _, m := range rateLimitMarkers {
		if strings.Contains(d, m) {
			return FailureRateLimit
		}
	}
	for _, m := range networkMarkers {
		if strings.Contains(d, m) {
			return FailureNetwork
		}
	}
	return FailureOther
}

// Attempt is one failed pull of one candidate
type Attempt struct {
	Ref  string
	Kind FailureKind
	Err  error
}

// PullError is returned when every candidate for an image failed
type PullError struct {
	Ref      string
	Attempts []Attempt
}

func (e *PullError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s): %v", a.Ref, a.Kind, a.Err))
	}
	return fmt.Sprintf("image alınamadı: %s [%s]", e.Ref, strings.Join(parts, "; "))
}

// Unwrap returns the last attempt's error
func (e *PullError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// RateLimited reports whether any attempt hit a rate limit or auth wall
func (e *PullError) RateLimited() bool {
	for _, a := range e.Attempts {
		if a.Kind == FailureRateLimit {
			return true
		}
	}
	return false
}

// Remediation returns the help text shown to the user
func (e *PullError) Remediation() string {
	if e.RateLimited() {
		return strings.Join([]string{
			"Docker Hub çekim limiti ya da yetki hatası. Seçenekler:",
			"  1. Hub kimlik bilgisi tanımlayın: DEVPODS_REGISTRY_USERNAME ve DEVPODS_REGISTRY_PASSWORD",
			"  2. Başka bir mirror deneyin: DEVPODS_REGISTRY_MIRROR=<host>",
			"  3. Limit sıfırlanana kadar bekleyip tekrar deneyin (genelde 6 saat)",
			"  4. Image'ı başka bir makinede çekip docker save / docker load ile aktarın: " + e.Ref,
		}, "\n")
	}
	return strings.Join([]string{
		"Image hiçbir kaynaktan çekilemedi.",
		"  Ağ bağlantısını ve proxy ayarlarını kontrol edip tekrar deneyin.",
	}, "\n")
}

// ImageStore is the runtime capability image acquisition needs
type ImageStore interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref, encodedAuth string) error
	TagImage(ctx context.Context, source, target string) error
}

// Acquirer makes images available locally using the candidate policy
type Acquirer struct {
	store  ImageStore
	auth   Auth
	mirror string
	logger *logrus.Logger
}

// NewAcquirer creates a new acquirer bound to one auth check result
func NewAcquirer(store ImageStore, auth Auth, mirror string, logger *logrus.Logger) *Acquirer {
	return &Acquirer{
		store:  store,
		auth:   auth,
		mirror: mirror,
		logger: logger,
	}
}

// Ensure guarantees ref is present locally. A pull satisfied by a candidate
// other than ref is tagged back as ref so container creation never depends on
// which source answered.
func (a *Acquirer) Ensure(ctx context.Context, ref string) error {
	exists, err := a.store.ImageExists(ctx, ref)
	if err != nil {
		return err
	}
	if exists {
		a.logger.WithField("image", ref).Debug("Image yerelde mevcut")
		return nil
	}

	pullErr := &PullError{Ref: ref}
	for _, candidate := range Candidates(ref, a.auth.Authenticated, a.mirror) {
		a.logger.WithField("image", candidate).Info("Image çekiliyor")

		// hub credentials are only offered to the hub itself
		auth := ""
		if a.auth.Authenticated && candidate == ref && IsMirrorable(candidate) {
			auth = a.auth.Encoded
		}

		if err := a.store.PullImage(ctx, candidate, auth); err != nil {
			kind := Classify(err.Error())
			a.logger.WithFields(logrus.Fields{
				"image": candidate,
				"kind":  kind.String(),
			}).WithError(err).Warn("Image çekilemedi")
			pullErr.Attempts = append(pullErr.Attempts, Attempt{Ref: candidate, Kind: kind, Err: err})
			continue
		}

		if candidate != ref {
			if err := a.store.TagImage(ctx, candidate, ref); err != nil {
				return fmt.Errorf("image etiketlenemedi: %w", err)
			}
		}
		return nil
	}

	return pullErr
}

// Preflight ensures every reference; the first failure aborts
func (a *Acquirer) Preflight(ctx context.Context, refs []string) error {
	for _, ref := range refs {
		if err := a.Ensure(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}
