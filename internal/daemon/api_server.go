package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"uplift/internal/api"
	"uplift/internal/config"
	"uplift/internal/logging"
	"uplift/internal/services"
	"uplift/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, fmt.Errorf("api bind address is required")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(srv.requestID)

	router.Route("/api", func(r chi.Router) {
		r.Get("/status", srv.handleStatus)

		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", srv.handleCreateDataset)
			r.Get("/", srv.handleListDatasets)
			r.Get("/{id}", srv.handleGetDataset)
			r.Delete("/{id}", srv.handleDeleteDataset)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", srv.handleCreateRun)
			r.Get("/", srv.handleListRuns)
			r.Get("/{id}", srv.handleGetRun)
			r.Delete("/{id}", srv.handleDeleteRun)
			r.Get("/{id}/status", srv.handleRunStatus)
			r.Get("/{id}/spec", srv.handleRunSpec)
			r.Get("/{id}/outputs", srv.handleRunOutputKinds)
			r.Get("/{id}/outputs/{kind}", srv.handleRunOutput)
		})
	})

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestID stamps a correlation id onto each request context so run creation
// and its pipeline logs share one identifier.
func (s *apiServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req api.CreateDatasetRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	detail, err := s.daemon.svc.CreateDataset(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, detail)
}

func (s *apiServer) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.daemon.svc.Datasets(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, api.DatasetListResponse{Datasets: datasets})
}

func (s *apiServer) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	detail, err := s.daemon.svc.DescribeDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

func (s *apiServer) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.svc.DeleteDataset(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (s *apiServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRunRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	detail, err := s.daemon.svc.CreateRun(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, detail)
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.daemon.svc.Runs(r.Context(), strings.TrimSpace(r.URL.Query().Get("dataset")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, api.RunListResponse{Runs: runs})
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	detail, err := s.daemon.svc.DescribeRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

func (s *apiServer) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.svc.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (s *apiServer) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.svc.RunStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, status)
}

func (s *apiServer) handleRunSpec(w http.ResponseWriter, r *http.Request) {
	detail, err := s.daemon.svc.DescribeRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, detail.Spec)
}

func (s *apiServer) handleRunOutputKinds(w http.ResponseWriter, r *http.Request) {
	kinds, err := s.daemon.svc.OutputKinds(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string][]string{"kinds": kinds})
}

func (s *apiServer) handleRunOutput(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	kind := chi.URLParam(r, "kind")
	payload, err := s.daemon.svc.Output(r.Context(), runID, kind)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, api.OutputResponse{RunID: runID, Kind: kind, Payload: payload})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		s.writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrInvalidTransition):
		s.writeError(w, r, http.StatusConflict, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", logging.Error(err))
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}
