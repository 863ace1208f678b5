// Package models defines the shared domain types for rounds.
package models

import "strings"

// QueryComplexity classifies how much orchestration a health query needs.
// It is assigned once during query analysis and is immutable afterward.
type QueryComplexity string

const (
	// ComplexitySimple is a single-fact lookup handled by one specialist.
	ComplexitySimple QueryComplexity = "simple"
	// ComplexityStandard is a typical question spanning a few domains.
	ComplexityStandard QueryComplexity = "standard"
	// ComplexityComplex requires cross-domain correlation.
	ComplexityComplex QueryComplexity = "complex"
	// ComplexityComprehensive is a full health review across most domains.
	ComplexityComprehensive QueryComplexity = "comprehensive"
)

// Valid returns true if the complexity is a known value.
func (c QueryComplexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityStandard, ComplexityComplex, ComplexityComprehensive:
		return true
	default:
		return false
	}
}

// SpecialistCount returns how many specialists the orchestrator should spawn
// for this complexity level.
func (c QueryComplexity) SpecialistCount() int {
	switch c {
	case ComplexitySimple:
		return 1
	case ComplexityStandard:
		return 3
	case ComplexityComplex:
		return 5
	case ComplexityComprehensive:
		return 8
	default:
		return 3
	}
}

// ToolCallBudget returns the per-specialist tool call ceiling for this
// complexity level.
func (c QueryComplexity) ToolCallBudget() int {
	switch c {
	case ComplexitySimple:
		return 3
	case ComplexityStandard:
		return 5
	case ComplexityComplex:
		return 7
	case ComplexityComprehensive:
		return 10
	default:
		return 5
	}
}

// ParseComplexity parses a complexity name case-insensitively.
// The second return value reports whether the input named a known level.
func ParseComplexity(s string) (QueryComplexity, bool) {
	c := QueryComplexity(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}
