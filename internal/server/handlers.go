package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/branch"
	"github.com/kurobon/modelrepo/internal/engine"
	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/model"
)

type CreateRepositoryRequest struct {
	Name      string `json:"name"`
	ModelName string `json:"modelName"`
}

type CommitRequest struct {
	Message string `json:"message"`
}

type ImportRequest struct {
	Discard bool `json:"discard"`
}

type SwitchRequest struct {
	Branch string `json:"branch"`
	Force  bool   `json:"force"`
}

// StatusResponse is what a branch picker and a status bar need.
type StatusResponse struct {
	Repository string          `json:"repository"`
	Branches   *branch.Status  `json:"branches"`
	State      engine.Snapshot `json:"state"`
	// Candidates are the labelled branches the user can switch to.
	Candidates   []string `json:"candidates"`
	UnsavedModel bool     `json:"unsavedModel"`
}

func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	names, err := s.Workspace.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"repositories": names})
}

func (s *Server) handleCreateRepository(w http.ResponseWriter, r *http.Request) {
	var req CreateRepositoryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.Workspace.Create(req.Name, req.ModelName); err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Str("repo", req.Name).Msg("repository created")
	writeJSON(w, http.StatusCreated, map[string]string{"repository": req.Name})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ent, err := s.Workspace.Get(r.PathValue("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.Engine.Tracker().ComputeStatus(ent.handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.Engine.State(r.Context(), ent.handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := StatusResponse{
		Repository:   ent.handle.Name(),
		Branches:     st,
		State:        snap,
		Candidates:   []string{},
		UnsavedModel: ent.host.IsDirty(),
	}
	for _, b := range st.SwitchCandidates() {
		resp.Candidates = append(resp.Candidates, b.Label())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	ent, err := s.Workspace.Get(r.PathValue("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ToDocument(ent.host.Graph()))
}

// handleSaveModel replaces the live model, as a save in an editor would,
// and schedules the export to the working tree in the background. A model
// that cannot be exported is refused and the live model is kept.
func (s *Server) handleSaveModel(w http.ResponseWriter, r *http.Request) {
	ent, err := s.Workspace.Get(r.PathValue("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var doc model.Document
	if err := decode(r, &doc); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := doc.Graph()
	if err != nil {
		writeError(w, r, badRequest(err.Error()))
		return
	}
	if err := grafico.Validate(g); err != nil {
		writeError(w, r, err)
		return
	}
	ent.host.ReplaceGraph(g)
	ent.host.MarkDirty(true)
	if err := s.Jobs.OnModelSaved(s.Engine, ent.host, ent.handle); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "export scheduled"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ent, err := s.Workspace.Get(r.PathValue("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	changes, err := s.Engine.ExportAndStage(r.Context(), ent.host, ent.handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if changes == nil {
		changes = grafico.ChangeSet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	ent, err := s.Workspace.Get(r.PathValue("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req CommitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Message == "" {
		writeError(w, r, badRequest("commit message is required"))
		return
	}
	id, err := s.Engine.Commit(r.Context(), ent.handle, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"commit": id.String()})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ent, err := s.Workspace.Get(r.PathValue("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ImportRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.Engine.ImportFromDisk(r.Context(), ent.host, ent.handle, engine.ImportOptions{Discard: req.Discard})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ToDocument(g))
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	ent, err := s.Workspace.Get(r.PathValue("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req SwitchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.Engine.Tracker().ComputeStatus(ent.handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	target, ok := st.Find(req.Branch)
	if !ok {
		writeError(w, r, &engine.UnknownBranchError{Name: req.Branch})
		return
	}
	g, err := s.Engine.SwitchBranch(r.Context(), ent.host, ent.handle, target, engine.SwitchOptions{Force: req.Force})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ToDocument(g))
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	ent, err := s.Workspace.Get(r.PathValue("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Engine.Fetch(r.Context(), ent.handle); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "fetched"})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	ent, err := s.Workspace.Get(r.PathValue("repo"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Engine.Push(r.Context(), ent.handle); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pushed"})
}
