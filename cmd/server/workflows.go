package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/liamcoop/ratebook/automation"
)

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	list, err := s.opts.Workflows.List(r.Context(), owner(r))
	if err != nil {
		respondStoreError(w, r, "failed to list workflows", err)
		return
	}
	if list == nil {
		list = []automation.Summary{}
	}
	respondJSON(w, r, http.StatusOK, WorkflowListResponse{Workflows: list})
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req WorkflowRequest
	if !decode(w, r, &req) {
		return
	}

	wf := req.workflow("")
	if err := s.checkWorkflow(wf); err != nil {
		respondStoreError(w, r, "invalid workflow", err)
		return
	}

	created, err := s.opts.Workflows.Create(r.Context(), owner(r), wf)
	if err != nil {
		respondStoreError(w, r, "failed to create workflow", err)
		return
	}
	respondJSON(w, r, http.StatusCreated, created)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.opts.Workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, "failed to load workflow", err)
		return
	}
	respondJSON(w, r, http.StatusOK, wf)
}

func (s *Server) handleReplaceWorkflow(w http.ResponseWriter, r *http.Request) {
	var req WorkflowRequest
	if !decode(w, r, &req) {
		return
	}

	wf := req.workflow(chi.URLParam(r, "id"))
	if err := s.checkWorkflow(wf); err != nil {
		respondStoreError(w, r, "invalid workflow", err)
		return
	}

	replaced, err := s.opts.Workflows.Replace(r.Context(), wf)
	if err != nil {
		respondStoreError(w, r, "failed to replace workflow", err)
		return
	}
	respondJSON(w, r, http.StatusOK, replaced)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Workflows.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, r, "failed to delete workflow", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		respondError(w, r, http.StatusBadRequest, "active is required", nil)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.opts.Workflows.SetActive(r.Context(), id, *req.Active); err != nil {
		respondStoreError(w, r, "failed to update workflow", err)
		return
	}

	wf, err := s.opts.Workflows.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, "failed to load workflow", err)
		return
	}
	respondJSON(w, r, http.StatusOK, wf)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decode(w, r, &req) {
		return
	}

	wf, err := s.opts.Workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, "failed to load workflow", err)
		return
	}

	res, err := s.opts.Previewer.Preview(wf, req.Record)
	if err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, "preview failed", err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

// checkWorkflow validates wf and makes sure its conditions compile
func (s *Server) checkWorkflow(wf *automation.Workflow) error {
	if err := automation.Validate(wf); err != nil {
		return err
	}
	if s.opts.Previewer != nil {
		return s.opts.Previewer.Check(wf)
	}
	return nil
}
