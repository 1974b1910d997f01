package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"devpods/pkg/pod"
	"devpods/pkg/registry"

	"github.com/gorilla/mux"
)

type errorResponse struct {
	Error       string `json:"error"`
	Remediation string `json:"remediation,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}

	var pullErr *registry.PullError
	if errors.As(err, &pullErr) {
		resp.Remediation = pullErr.Remediation()
	}

	writeJSON(w, status, resp)
}

// lookupPod resolves the {name} route variable, answering 404 itself on failure
func (s *Server) lookupPod(w http.ResponseWriter, r *http.Request) (pod.Kind, bool) {
	k, err := pod.Lookup(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return 0, false
	}
	return k, true
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
		"service": "devpods",
	})
}

// listPodsHandler reports every pod
func (s *Server) listPodsHandler(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.ctrl.Status(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Pod durumları alınamadı")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// getPodHandler reports one pod
func (s *Server) getPodHandler(w http.ResponseWriter, r *http.Request) {
	k, ok := s.lookupPod(w, r)
	if !ok {
		return
	}

	st, err := s.ctrl.PodStatus(r.Context(), k)
	if err != nil {
		s.logger.WithError(err).WithField("pod", k.Name()).Error("Pod durumu alınamadı")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// actionHandler runs a lifecycle verb and answers with the resulting pod status
func (s *Server) actionHandler(verb string, action podAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, ok := s.lookupPod(w, r)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		log := s.logger.WithField("pod", k.Name()).WithField("verb", verb)
		if err := action(r.Context(), k); err != nil {
			log.WithError(err).Error("Pod işlemi başarısız")
			status := http.StatusInternalServerError
			var pullErr *registry.PullError
			if errors.As(err, &pullErr) {
				status = http.StatusBadGateway
			}
			s.writeError(w, status, err)
			return
		}

		st, err := s.ctrl.PodStatus(r.Context(), k)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
