package main

import (
	"github.com/liamcoop/ratebook/automation"
	"github.com/liamcoop/ratebook/internal/logger"
	"github.com/liamcoop/ratebook/rules"
)

// RuleSetRequest is the body of POST /rulesets and PUT /rulesets/{id}.
// A save always replaces the whole set.
type RuleSetRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Categories  []string      `json:"categories"`
	ResultLabel string        `json:"resultLabel"`
	WarningText string        `json:"warningText"`
	Fields      []rules.Field `json:"fields"`
	Rules       []rules.Rule  `json:"rules"`
}

func (req RuleSetRequest) ruleSet(id string) *rules.RuleSet {
	return &rules.RuleSet{
		ID: id,
		Metadata: rules.Metadata{
			Name:        req.Name,
			Description: req.Description,
			Categories:  req.Categories,
			ResultLabel: req.ResultLabel,
			WarningText: req.WarningText,
		},
		Fields: req.Fields,
		Rules:  req.Rules,
	}
}

// RuleSetListResponse is the body of GET /rulesets
type RuleSetListResponse struct {
	RuleSets []rules.RuleSetSummary `json:"ruleSets"`
}

// EvaluateRequest runs an unsaved rule list, as the builder's test run does
type EvaluateRequest struct {
	Rules  []rules.Rule `json:"rules"`
	Values rules.Values `json:"values"`
}

// EvaluateResponse is the result of an unsaved test run
type EvaluateResponse struct {
	Result float64      `json:"result"`
	Trace  []rules.Step `json:"trace"`
}

// CalculateRequest is the body of POST /rulesets/{id}/evaluate
type CalculateRequest struct {
	Values rules.Values `json:"values"`
}

// WorkflowRequest is the body of POST /workflows and PUT /workflows/{id}
type WorkflowRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Active      bool                   `json:"active"`
	Match       automation.Match       `json:"match"`
	Trigger     automation.Trigger     `json:"trigger"`
	Conditions  []automation.Condition `json:"conditions"`
	Actions     []automation.Step      `json:"actions"`
}

func (req WorkflowRequest) workflow(id string) *automation.Workflow {
	return &automation.Workflow{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
		Match:       req.Match,
		Trigger:     req.Trigger,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
	}
}

// WorkflowListResponse is the body of GET /workflows
type WorkflowListResponse struct {
	Workflows []automation.Summary `json:"workflows"`
}

// ActiveRequest is the body of PUT /workflows/{id}/active
type ActiveRequest struct {
	Active *bool `json:"active"`
}

// PreviewRequest is the sample record a workflow preview runs against
type PreviewRequest struct {
	Record map[string]any `json:"record"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string       `json:"status"`
	Store     string       `json:"store"`
	Workflows bool         `json:"workflows"`
	Error     string       `json:"error,omitempty"`
	Counters  logger.Stats `json:"counters"`
}
