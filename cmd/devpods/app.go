package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"devpods/pkg/config"
	"devpods/pkg/container"
	"devpods/pkg/credentials"
	"devpods/pkg/orchestrator"
	"devpods/pkg/preflight"
	"devpods/pkg/registry"
	"devpods/pkg/storage"
	"devpods/pkg/ui"

	"github.com/sirupsen/logrus"
)

// app is everything a command needs once preflight has passed
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	runtime   *container.Manager
	storage   *storage.Storage
	orch      *orchestrator.Orchestrator
	formatter *ui.MarkerFormatter
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("konfigürasyon yüklenemedi: %w", err)
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("geçersiz log seviyesi: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(ui.NewMarkerFormatter())
	}
	return logger, nil
}

// newApp runs the preflight checks and wires the orchestrator. With
// withImages set it also loads the credential file and checks registry auth,
// which only the mutating verbs need.
func newApp(ctx context.Context, withImages bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Logging, os.Stdout)
	if err != nil {
		return nil, err
	}

	rt, err := container.NewManager(cfg.Runtime.Host, logger)
	if err != nil {
		return nil, fmt.Errorf("container manager oluşturulamadı: %w", err)
	}

	checker := preflight.NewChecker(cfg.Runtime.MinVersion, preflight.CommandActivator(cfg.Runtime.ActivateCommand), logger)
	runtimeVersion, err := checker.Run(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}
	logger.WithField("version", runtimeVersion).Debug("Ön kontroller tamamlandı")

	store, err := storage.NewStorage(cfg.Storage.DataDir, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("storage oluşturulamadı: %w", err)
	}

	opts := orchestrator.Options{
		Runtime:   rt,
		Storage:   store,
		Health:    cfg.Health,
		Bootstrap: cfg.Bootstrap,
		Logger:    logger,
	}

	if withImages {
		path := credentials.Path(store.DataDir())
		creds, created, err := credentials.Load(path)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if created {
			logger.WithField("path", path).Info("Varsayılan kimlik bilgileri dosyası oluşturuldu")
		}

		auth := registry.CheckAuth(ctx, rt, cfg.Registry.Username, cfg.Registry.Password, logger)
		opts.Credentials = creds
		opts.Images = registry.NewAcquirer(rt, auth, cfg.Registry.Mirror, logger)
	}

	formatter, _ := logger.Formatter.(*ui.MarkerFormatter)
	if formatter == nil {
		formatter = &ui.MarkerFormatter{NoColor: true}
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		runtime:   rt,
		storage:   store,
		orch:      orchestrator.New(opts),
		formatter: formatter,
	}, nil
}

// Close releases the runtime client
func (a *app) Close() error {
	return a.runtime.Close()
}
