package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const equineYAML = `
name: Equine mortality
resultLabel: Annual premium
categories: [equine]
fields:
  - name: value
    label: Insured value
    type: number
    required: true
rules:
  - conditionField: value
    conditionOperator: ">"
    conditionValue: 1000
    actionType: add_amount
    actionValue: 50
  - conditionField: value
    conditionOperator: ">"
    conditionValue: "5000"
    actionType: multiply_percent
    actionValue: 5
`

func TestDecodeRuleSetYAML(t *testing.T) {
	s, err := DecodeRuleSet(strings.NewReader(equineYAML), "agent-1")
	if err != nil {
		t.Fatalf("DecodeRuleSet() failed: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	rules := s.Rules()
	if len(rules) != 2 || rules[0].ConditionValue != "1000" || rules[1].SortOrder != 1 {
		t.Fatalf("Rules() = %+v", rules)
	}
	if got := s.Run(Values{"value": 6000}); got != 350 {
		t.Errorf("Run() = %v, want 350", got)
	}
	if s.Metadata().ResultLabel != "Annual premium" {
		t.Errorf("ResultLabel = %q", s.Metadata().ResultLabel)
	}
}

func TestDecodeRuleSetJSON(t *testing.T) {
	doc := `{"name":"Flat fee","fields":[{"name":"x","type":"text"}],"rules":[{"conditionField":"x","conditionOperator":"contains","conditionValue":"","actionType":"add_amount","actionValue":25}]}`

	s, err := DecodeRuleSet(strings.NewReader(doc), "")
	if err != nil {
		t.Fatalf("DecodeRuleSet() failed: %v", err)
	}
	if got := s.Run(Values{}); got != 25 {
		t.Errorf("Run() = %v, want 25", got)
	}
}

func TestDecodeRuleSetIgnoresSortOrder(t *testing.T) {
	doc := `
name: Sorted
fields:
  - name: value
    type: number
    sortOrder: 5
  - name: use
    type: text
    sortOrder: 2
rules:
  - conditionField: value
    conditionOperator: ">"
    conditionValue: "0"
    actionType: add_amount
    actionValue: 10
    sortOrder: 9
`
	s, err := DecodeRuleSet(strings.NewReader(doc), "")
	if err != nil {
		t.Fatalf("DecodeRuleSet() failed: %v", err)
	}

	fields := s.Fields()
	if len(fields) != 2 || fields[0].Name != "value" || fields[0].SortOrder != 0 || fields[1].SortOrder != 1 {
		t.Errorf("Fields() = %+v, want document order from 0", fields)
	}
	if rules := s.Rules(); len(rules) != 1 || rules[0].SortOrder != 0 {
		t.Errorf("Rules() = %+v, want sortOrder 0", rules)
	}
}

func TestDecodeRuleSetExported(t *testing.T) {
	// the shape GET /rulesets/{id} returns
	doc := `{"id":"rs-1","owner":"agent-1","name":"Flat fee","description":"","categories":null,"resultLabel":"","warningText":"",` +
		`"fields":[{"id":"f-1","name":"x","label":"X","type":"text","required":false,"sortOrder":0}],` +
		`"rules":[{"id":"r-1","conditionField":"x","conditionOperator":"contains","conditionValue":"","actionType":"add_amount","actionValue":25,"sortOrder":0}],` +
		`"createdAt":"2026-10-14T09:00:00Z","updatedAt":"2026-10-14T09:30:00Z"}`

	s, err := DecodeRuleSet(strings.NewReader(doc), "agent-2")
	if err != nil {
		t.Fatalf("DecodeRuleSet() failed: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if got := s.Run(Values{}); got != 25 {
		t.Errorf("Run() = %v, want 25", got)
	}
	if s.ID() != "" {
		t.Errorf("ID() = %q, want the stored id dropped", s.ID())
	}
	if snap := s.Snapshot(); snap.Owner != "agent-2" {
		t.Errorf("Owner = %q, want agent-2", snap.Owner)
	}
}

func TestDecodeRuleSetErrors(t *testing.T) {
	docs := map[string]string{
		"unknown action": "name: n\nrules:\n  - conditionField: x\n    actionType: surcharge\n",
		"unknown key":    "name: n\npriority: high\n",
		"not a mapping":  "- just\n- a list\n",
	}
	for name, doc := range docs {
		if _, err := DecodeRuleSet(strings.NewReader(doc), ""); err == nil {
			t.Errorf("%s: DecodeRuleSet() should fail", name)
		}
	}
}

func TestReadRuleSetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equine.yaml")
	if err := os.WriteFile(path, []byte(equineYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := ReadRuleSetFile(path, "agent-1")
	if err != nil {
		t.Fatalf("ReadRuleSetFile() failed: %v", err)
	}
	if s.Metadata().Name != "Equine mortality" {
		t.Errorf("Name = %q", s.Metadata().Name)
	}

	if _, err := ReadRuleSetFile(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Error("ReadRuleSetFile() on a missing file should fail")
	}
}
