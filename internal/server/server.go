package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/instrument"
	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
)

type (
	// Server is the small HTTP admin surface: manual task submission and
	// queue introspection. It is not the data-service API; only operators
	// and the admin CLI talk to it.
	Server struct {
		logger     *zap.Logger
		queue      queue.Queue
		httpServer *http.Server
		calls      map[string]instrument.Call
	}

	enqueueRequest struct {
		Type       string `json:"type"`
		Round      int    `json:"round,omitempty"`
		Entry      int    `json:"entry,omitempty"`
		Tournament int    `json:"tournament,omitempty"`
	}

	enqueueResponse struct {
		DedupKey     string `json:"dedup_key"`
		Deduplicated bool   `json:"deduplicated"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

const (
	serverScopeName = "server"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func New(cfg *config.Config, logger *zap.Logger, metrics tally.Scope, q queue.Queue) *Server {
	scope := metrics.SubScope(serverScopeName)
	s := &Server{
		logger: log.WithPackage(logger),
		queue:  q,
		calls: map[string]instrument.Call{
			"enqueue": instrument.NewCall(scope, "enqueue"),
			"counts":  instrument.NewCall(scope, "counts"),
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/tasks", s.handleTasks)
	mux.HandleFunc("/v1/tasks/counts", s.handleCounts)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.BindAddress,
		Handler:           s.recoverPanic(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) Start() error {
	listenErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !xerrors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// Surface an immediate bind failure instead of starting half-up.
	select {
	case err := <-listenErr:
		return xerrors.Errorf("failed to start server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	s.logger.Info("started server", zap.String("address", s.httpServer.Addr))
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routing stack for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// recoverPanic converts a handler panic into a 500 with a structured body,
// never a raw stack leaking to the caller.
func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("recovered from handler panic", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				s.writeError(w, http.StatusInternalServerError, xerrors.New("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, xerrors.Errorf("method not allowed: %v", r.Method))
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, xerrors.Errorf("failed to decode request: %w", err))
		return
	}

	taskType := task.Type(req.Type)
	if !taskType.Valid() {
		s.writeError(w, http.StatusBadRequest, xerrors.Errorf("invalid task type: %v", req.Type))
		return
	}

	subject := task.Subject{
		Round:      fpl.RoundID(req.Round),
		Entry:      fpl.EntryID(req.Entry),
		Tournament: fpl.TournamentID(req.Tournament),
	}

	var handle *queue.Handle
	err := s.calls["enqueue"].Instrument(r.Context(), func(ctx context.Context) error {
		var err error
		handle, err = s.queue.Enqueue(ctx, queue.Request{
			Type:    taskType,
			Subject: subject,
			Source:  task.SourceAPI,
		})
		return err
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, xerrors.Errorf("failed to enqueue task: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, enqueueResponse{
		DedupKey:     handle.DedupKey,
		Deduplicated: handle.Deduplicated,
	})
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, xerrors.Errorf("method not allowed: %v", r.Method))
		return
	}

	var counts queue.Counts
	err := s.calls["counts"].Instrument(r.Context(), func(ctx context.Context) error {
		var err error
		counts, err = s.queue.Counts(ctx)
		return err
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, xerrors.Errorf("failed to query counts: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, counts)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
