package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"devpods/pkg/orchestrator"
	"devpods/pkg/pod"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Controller is the orchestrator surface the HTTP API drives
type Controller interface {
	Up(ctx context.Context, k pod.Kind) error
	Down(ctx context.Context, k pod.Kind) error
	Reset(ctx context.Context, k pod.Kind) error
	PodStatus(ctx context.Context, k pod.Kind) (orchestrator.PodStatus, error)
	Status(ctx context.Context) ([]orchestrator.PodStatus, error)
}

// Server exposes the pod lifecycle over a local HTTP API
type Server struct {
	ctrl   Controller
	logger *logrus.Logger
	router *mux.Router
	// mu serialises lifecycle calls; the data root assumes a single writer
	mu sync.Mutex
}

// NewServer creates a new API server
func NewServer(ctrl Controller, logger *logrus.Logger) *Server {
	s := &Server{
		ctrl:   ctrl,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes sets up HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")

	s.router.HandleFunc("/pods", s.listPodsHandler).Methods("GET")
	s.router.HandleFunc("/pods/{name}", s.getPodHandler).Methods("GET")
	s.router.HandleFunc("/pods/{name}/up", s.actionHandler("up", s.ctrl.Up)).Methods("POST")
	s.router.HandleFunc("/pods/{name}/down", s.actionHandler("down", s.ctrl.Down)).Methods("POST")
	s.router.HandleFunc("/pods/{name}/reset", s.actionHandler("reset", s.ctrl.Reset)).Methods("POST")

	s.router.Use(s.loggingMiddleware)
}

// loggingMiddleware logs every request
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		}).Debug("HTTP isteği")
	})
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// up may pull images and wait for health checks
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", addr).Info("devpods API başlatılıyor")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server hatası: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("devpods API kapatılıyor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.WithError(err).Error("Server kapatma hatası")
		return err
	}

	s.logger.Info("devpods API başarıyla kapatıldı")
	return nil
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "🌐 Yerel HTTP kontrol API'sini başlat",
	Long: `Pod yaşam döngüsünü yerel bir HTTP API üzerinden sunar.

Uç noktalar:
  GET  /health
  GET  /pods
  GET  /pods/{name}
  POST /pods/{name}/up
  POST /pods/{name}/down
  POST /pods/{name}/reset

Örnek kullanım:
  devpods serve
  devpods serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := serveAddr
		if addr == "" {
			addr = net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
		}
		return NewServer(a.orch, a.logger).Serve(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "dinlenecek adres (varsayılan: server.host:server.port)")
}
