package models

import "testing"

func TestParseComplexity(t *testing.T) {
	tests := []struct {
		input string
		want  QueryComplexity
		valid bool
	}{
		{"simple", ComplexitySimple, true},
		{"STANDARD", ComplexityStandard, true},
		{"  Complex  ", ComplexityComplex, true},
		{"Comprehensive", ComplexityComprehensive, true},
		{"medium", "medium", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, valid := ParseComplexity(tt.input)
		if valid != tt.valid {
			t.Errorf("ParseComplexity(%q) valid = %v, want %v", tt.input, valid, tt.valid)
		}
		if valid && got != tt.want {
			t.Errorf("ParseComplexity(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestComplexitySizing(t *testing.T) {
	tests := []struct {
		complexity QueryComplexity
		count      int
		budget     int
	}{
		{ComplexitySimple, 1, 3},
		{ComplexityStandard, 3, 5},
		{ComplexityComplex, 5, 7},
		{ComplexityComprehensive, 8, 10},
	}

	for _, tt := range tests {
		if got := tt.complexity.SpecialistCount(); got != tt.count {
			t.Errorf("%s SpecialistCount = %d, want %d", tt.complexity, got, tt.count)
		}
		if got := tt.complexity.ToolCallBudget(); got != tt.budget {
			t.Errorf("%s ToolCallBudget = %d, want %d", tt.complexity, got, tt.budget)
		}
	}
}

func TestParseSpecialist(t *testing.T) {
	tests := []struct {
		input string
		want  SpecialistType
		valid bool
	}{
		{"cardiology", SpecialistCardiology, true},
		{"Sleep Medicine", SpecialistSleepMedicine, true},
		{"general-practice", SpecialistGeneralPractice, true},
		{"PHARMACY", SpecialistPharmacy, true},
		{"astrology", "astrology", false},
	}

	for _, tt := range tests {
		got, valid := ParseSpecialist(tt.input)
		if valid != tt.valid {
			t.Errorf("ParseSpecialist(%q) valid = %v, want %v", tt.input, valid, tt.valid)
		}
		if valid && got != tt.want {
			t.Errorf("ParseSpecialist(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPriorityRoundTrip(t *testing.T) {
	for _, p := range []TaskPriority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow} {
		if got := PriorityFromName(p.String()); got != p {
			t.Errorf("PriorityFromName(%q) = %d, want %d", p.String(), got, p)
		}
	}

	if got := PriorityFromName("urgent"); got != PriorityMedium {
		t.Errorf("unknown name should map to medium, got %d", got)
	}
	if got := TaskPriority(99).String(); got != "medium" {
		t.Errorf("out-of-range priority String = %q, want medium", got)
	}
}
