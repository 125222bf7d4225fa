package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/liamcoop/ratebook/rules"
)

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Values == nil {
		req.Values = rules.Values{}
	}

	result, trace := rules.Trace(req.Rules, req.Values)
	respondJSON(w, r, http.StatusOK, EvaluateResponse{Result: result, Trace: trace})
}

func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.opts.Engine.List(r.Context(), owner(r))
	if err != nil {
		respondStoreError(w, r, "failed to list rule sets", err)
		return
	}
	if sets == nil {
		sets = []rules.RuleSetSummary{}
	}
	respondJSON(w, r, http.StatusOK, RuleSetListResponse{RuleSets: sets})
}

func (s *Server) handleCreateRuleSet(w http.ResponseWriter, r *http.Request) {
	var req RuleSetRequest
	if !decode(w, r, &req) {
		return
	}
	s.saveRuleSet(w, r, req.ruleSet(""), http.StatusCreated)
}

func (s *Server) handleReplaceRuleSet(w http.ResponseWriter, r *http.Request) {
	var req RuleSetRequest
	if !decode(w, r, &req) {
		return
	}
	s.saveRuleSet(w, r, req.ruleSet(chi.URLParam(r, "id")), http.StatusOK)
}

func (s *Server) saveRuleSet(w http.ResponseWriter, r *http.Request, rs *rules.RuleSet, status int) {
	id, err := s.opts.Engine.Save(r.Context(), owner(r), rs)
	if err != nil {
		respondStoreError(w, r, "failed to save rule set", err)
		return
	}

	saved, err := s.opts.Engine.Load(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, "failed to load rule set", err)
		return
	}
	respondJSON(w, r, status, saved)
}

func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	rs, err := s.opts.Engine.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, "failed to load rule set", err)
		return
	}
	respondJSON(w, r, http.StatusOK, rs)
}

func (s *Server) handleDeleteRuleSet(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Engine.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, r, "failed to delete rule set", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Values == nil {
		req.Values = rules.Values{}
	}

	calc, err := s.opts.Engine.Calculate(r.Context(), chi.URLParam(r, "id"), req.Values)
	if err != nil {
		respondStoreError(w, r, "failed to calculate", err)
		return
	}
	respondJSON(w, r, http.StatusOK, calc)
}
