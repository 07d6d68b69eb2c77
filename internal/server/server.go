// Package server exposes the repository engine over HTTP for a front-end.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/engine"
	"github.com/kurobon/modelrepo/internal/event"
	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/jobs"
	"github.com/kurobon/modelrepo/internal/repo"
)

type Server struct {
	Workspace *Workspace
	Engine    *engine.Engine
	Jobs      *jobs.Runner
	Bus       *event.Bus
	Mux       *http.ServeMux
}

func NewServer(ws *Workspace, eng *engine.Engine, runner *jobs.Runner, bus *event.Bus) *Server {
	s := &Server{
		Workspace: ws,
		Engine:    eng,
		Jobs:      runner,
		Bus:       bus,
		Mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Mux.HandleFunc("/ping", s.handlePing)
	s.Mux.HandleFunc("GET /api/repositories", s.handleListRepositories)
	s.Mux.HandleFunc("POST /api/repositories", s.handleCreateRepository)
	s.Mux.HandleFunc("GET /api/repositories/{repo}/status", s.handleStatus)
	s.Mux.HandleFunc("GET /api/repositories/{repo}/model", s.handleGetModel)
	s.Mux.HandleFunc("PUT /api/repositories/{repo}/model", s.handleSaveModel)
	s.Mux.HandleFunc("POST /api/repositories/{repo}/export", s.handleExport)
	s.Mux.HandleFunc("POST /api/repositories/{repo}/commit", s.handleCommit)
	s.Mux.HandleFunc("POST /api/repositories/{repo}/import", s.handleImport)
	s.Mux.HandleFunc("POST /api/repositories/{repo}/switch", s.handleSwitch)
	s.Mux.HandleFunc("POST /api/repositories/{repo}/fetch", s.handleFetch)
	s.Mux.HandleFunc("POST /api/repositories/{repo}/push", s.handlePush)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Mux.ServeHTTP(w, r)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "pong",
		"system":  "modelrepo",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

// writeError answers with the user message for err and a status code that
// tells the front-end what kind of failure it was.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, map[string]string{"error": engine.UserMessage(err)})
}

func statusFor(err error) int {
	var (
		notRepo  *repo.NotARepositoryError
		unknown  *engine.UnknownBranchError
		dirty    *engine.DirtyWorkingTreeError
		unsaved  *engine.UnsavedChangesConflictError
		serErr   *grafico.SerializationError
		parseErr *grafico.ParseError
		refErr   *grafico.ReferenceError
		gitErr   *repo.GitAccessError
		badReq   *requestError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.As(err, &notRepo), errors.As(err, &unknown), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNothingToCommit), errors.Is(err, engine.ErrDetachedHead),
		errors.As(err, &dirty), errors.As(err, &unsaved), errors.Is(err, os.ErrExist):
		return http.StatusConflict
	case errors.As(err, &serErr), errors.As(err, &parseErr), errors.As(err, &refErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &gitErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

func decode(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}
