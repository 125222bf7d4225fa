package rules

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1000", 1000},
		{"  42", 42},
		{"12abc", 12},
		{"3.5%", 3.5},
		{".5", 0.5},
		{"-7", -7},
		{"1e3", 1000},
		{"Infinity", math.Inf(1)},
		{"-Infinity", math.Inf(-1)},
	}

	for _, tt := range tests {
		if got := parseNumber(tt.in); got != tt.want {
			t.Errorf("parseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"", "abc", "$100", "-", "."} {
		if got := parseNumber(in); !math.IsNaN(got) {
			t.Errorf("parseNumber(%q) = %v, want NaN", in, got)
		}
	}
}

func TestStringValue(t *testing.T) {
	tests := []struct {
		raw     any
		present bool
		want    string
	}{
		{nil, false, ""},
		{nil, true, ""},
		{"Arabian", true, "Arabian"},
		{true, true, "true"},
		{6000.0, true, "6000"},
		{2.5, true, "2.5"},
		{12, true, "12"},
		{int64(-3), true, "-3"},
		{json.Number("15"), true, "15"},
		{math.Inf(1), true, "Infinity"},
		{math.Copysign(0, -1), true, "0"},
		{123.5, true, "123.5"},
		{1e20, true, "100000000000000000000"},
		{1e21, true, "1e+21"},
		{-2.5e22, true, "-2.5e+22"},
		{0.000001, true, "0.000001"},
		{1e-7, true, "1e-7"},
		{1.5e-10, true, "1.5e-10"},
	}

	for _, tt := range tests {
		if got := stringValue(tt.raw, tt.present); got != tt.want {
			t.Errorf("stringValue(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestContainsLargeNumber(t *testing.T) {
	if !matches(OpContains, 1e21, true, "e+21") {
		t.Error("contains on 1e21 should see the exponent form")
	}
	if matches(OpContains, 1e20, true, "e") {
		t.Error("contains on 1e20 should see plain digits")
	}
}

func TestMatchesOperators(t *testing.T) {
	tests := []struct {
		op   Operator
		raw  any
		want string
		ok   bool
	}{
		{OpEqual, 5000, "5000", true},
		{OpEqual, "5000", "5000.0", false},
		{OpGreater, 6000, "5000", true},
		{OpGreater, 5000, "5000", false},
		{OpGreaterEqual, 5000, "5000", true},
		{OpLess, "99", "100", true},
		{OpLessEqual, 101, "100", false},
		{OpGreater, "abc", "1", false},
		{OpGreater, true, "0", false},
		{OpGreater, 10, "abc", false},
		{OpContains, "Dressage, Show", "Show", true},
		{OpContains, 12345, "234", true},
	}

	for _, tt := range tests {
		if got := matches(tt.op, tt.raw, true, tt.want); got != tt.ok {
			t.Errorf("matches(%s, %v, %q) = %v, want %v", tt.op, tt.raw, tt.want, got, tt.ok)
		}
	}
}

func TestFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := finite(f); got != 0 {
			t.Errorf("finite(%v) = %v, want 0", f, got)
		}
	}
	if got := finite(12.5); got != 12.5 {
		t.Errorf("finite(12.5) = %v", got)
	}
}
