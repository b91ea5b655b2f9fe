// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"intrawatch/internal/errors"
	"intrawatch/internal/logging"
	"intrawatch/internal/middleware"
	"intrawatch/internal/reconcile"
	"intrawatch/internal/snapshot"
)

// Status exposes the driver's progress.
type Status interface {
	State() reconcile.State
	LastReport() *reconcile.Report
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State      reconcile.State   `json:"state"`
	LastReport *reconcile.Report `json:"last_report"`
}

type StatusHandler struct {
	status  Status
	store   snapshot.Store
	started time.Time
}

func NewStatusHandler(status Status, store snapshot.Store) *StatusHandler {
	return &StatusHandler{status: status, store: store, started: time.Now()}
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		State:      h.status.State(),
		LastReport: h.status.LastReport(),
	})
}

func (h *StatusHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if key := r.URL.Query().Get("project"); key != "" {
		p, ok := snap.Project(key)
		if !ok {
			writeError(w, errors.NotFound("project not found: "+key))
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusOK, snap.Projects)
}

// NewRouter mounts the status endpoints behind the middleware chain.
func NewRouter(h *StatusHandler, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("GET /api/snapshot", h.Snapshot)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recover(logger),
	)
}

// Serve runs the status server until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.TypeOf(err) {
	case errors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrorTypeValidation:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{
		"type":  string(errors.TypeOf(err)),
		"error": err.Error(),
	})
}
