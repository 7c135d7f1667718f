package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sublime/internal/api"
	"sublime/internal/config"
	"sublime/internal/logging"
	"sublime/internal/review"
	"sublime/internal/run"
	"sublime/internal/session"
	"sublime/internal/subtitle"
)

// maxUploadBytes caps the subtitle upload body.
const maxUploadBytes = 16 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("config and daemon are required")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/session", authMiddleware(token, srv.handleSession))
	mux.HandleFunc("/api/session/context", authMiddleware(token, srv.handleContext))
	mux.HandleFunc("/api/session/cues", authMiddleware(token, srv.handleCues))
	mux.HandleFunc("/api/session/cues/", authMiddleware(token, srv.handleCueAction))
	mux.HandleFunc("/api/session/selection", authMiddleware(token, srv.handleSelection))
	mux.HandleFunc("/api/session/selection/discard", authMiddleware(token, srv.handleSelectionDiscard))
	mux.HandleFunc("/api/session/run", authMiddleware(token, srv.handleRun))
	mux.HandleFunc("/api/session/run/cancel", authMiddleware(token, srv.handleRunCancel))
	mux.HandleFunc("/api/session/discard", authMiddleware(token, srv.handleDiscardAll))
	mux.HandleFunc("/api/session/export", authMiddleware(token, srv.handleExport))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
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
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
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

// handler returns the http handler, exposed for tests.
func (s *apiServer) handler() http.Handler {
	return s.server.Handler
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createSession(w, r)
	case http.MethodGet:
		s.describeSession(w, r)
	case http.MethodDelete:
		if err := s.daemon.CloseSession(); err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) createSession(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)

	// JSON uploads carry name, content, and context in one payload. Any
	// other content type is treated as a raw SRT body, with the filename
	// taken from the name query parameter.
	var req api.CreateSessionRequest
	if strings.Contains(r.Header.Get("Content-Type"), "json") {
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		raw, err := io.ReadAll(body)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Content = string(raw)
		req.Name = r.URL.Query().Get("name")
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = "subtitles.srt"
	}
	sess, err := s.daemon.CreateSession(req.Name, req.Content, api.ToContext(req.Context))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.sessionResponse(r.Context(), sess))
}

func (s *apiServer) describeSession(w http.ResponseWriter, r *http.Request) {
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}
	s.writeJSON(w, http.StatusOK, s.sessionResponse(r.Context(), sess))
}

func (s *apiServer) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}
	var req api.Context
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess.SetContext(api.ToContext(req))
	s.writeJSON(w, http.StatusOK, s.sessionResponse(r.Context(), sess))
}

func (s *apiServer) handleCues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}
	filter, err := review.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cues, err := sess.Cues(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	selected := sess.Selected()
	s.writeJSON(w, http.StatusOK, api.CueListResponse{
		Cues:     api.FromCues(cues, selected),
		Filter:   string(filter),
		Selected: selected,
	})
}

func (s *apiServer) handleCueAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/session/cues/")
	idStr, action, ok := strings.Cut(rest, "/")
	if !ok || idStr == "" || strings.Contains(action, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid cue id")
		return
	}

	switch action {
	case "edit":
		var req api.EditCueRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := sess.Edit(r.Context(), id, req.Text); err != nil {
			s.writeDomainError(w, err)
			return
		}
	case "discard":
		if err := sess.Discard(r.Context(), id); err != nil {
			s.writeDomainError(w, err)
			return
		}
	case "select":
		selected, err := sess.ToggleSelect(r.Context(), id)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"selected": selected})
		return
	default:
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.sessionResponse(r.Context(), sess))
}

func (s *apiServer) handleSelection(w http.ResponseWriter, r *http.Request) {
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}
	switch r.Method {
	case http.MethodPost:
		filter, err := review.ParseFilter(r.URL.Query().Get("filter"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		count, err := sess.SelectAll(r.Context(), filter)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.SelectionResponse{Selected: sess.Selected(), Count: count})
	case http.MethodDelete:
		sess.ClearSelection()
		s.writeJSON(w, http.StatusOK, api.SelectionResponse{Selected: nil, Count: 0})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleSelectionDiscard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}
	count, err := sess.DiscardSelected(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"discarded": count})
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req api.StartRunRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
				s.writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		if _, err := sess.StartRun(r.Context(), req.Model); err != nil {
			s.writeDomainError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, api.RunResponse{Run: api.FromSnapshot(sess.RunSnapshot())})
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, api.RunResponse{Run: api.FromSnapshot(sess.RunSnapshot())})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleRunCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}
	cancelled := sess.CancelRun()
	if cancelled {
		sess.WaitRun()
	}
	s.writeJSON(w, http.StatusOK, struct {
		Cancelled bool    `json:"cancelled"`
		Run       api.Run `json:"run"`
	}{
		Cancelled: cancelled,
		Run:       api.FromSnapshot(sess.RunSnapshot()),
	})
}

func (s *apiServer) handleDiscardAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}
	if err := sess.DiscardAll(r.Context()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.sessionResponse(r.Context(), sess))
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess := s.daemon.Session()
	if sess == nil {
		s.writeDomainError(w, ErrNoSession)
		return
	}
	content, err := sess.ExportSRT(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/x-subrip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.ExportName()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

func (s *apiServer) sessionResponse(ctx context.Context, sess *review.Session) api.SessionResponse {
	stats, err := sess.Stats(ctx)
	if err != nil {
		s.log().Warn("session stats failed", logging.Error(err))
	}
	return api.SessionResponse{
		Session: sessionView(ctx, sess),
		Run:     api.FromSnapshot(sess.RunSnapshot()),
		Stats:   api.FromStats(stats),
	}
}

func (s *apiServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoSession):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrCueNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, run.ErrRunActive):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, run.ErrNoCues), errors.Is(err, subtitle.ErrNoCues):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
