package extract

import (
	"strings"
	"testing"

	"github.com/openrounds/rounds/pkg/models"
)

func TestTag(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		tag   string
		want  string
		found bool
	}{
		{"simple", "<approach>trend analysis</approach>", "approach", "trend analysis", true},
		{"surrounding prose", "Let me think. <approach>trends</approach> Done.", "approach", "trends", true},
		{"case insensitive", "<Approach>Trends</Approach>", "approach", "Trends", true},
		{"multiline", "<approach>\nline one\nline two\n</approach>", "approach", "line one\nline two", true},
		{"missing", "no tags here", "approach", "", false},
		{"unclosed", "<approach>never closed", "approach", "", false},
		{"attributes", `<approach kind="x">trends</approach>`, "approach", "trends", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Tag(tt.text, tt.tag)
			if found != tt.found {
				t.Fatalf("Tag found = %v, want %v", found, tt.found)
			}
			if got != tt.want {
				t.Errorf("Tag = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComplexity(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		fallback models.QueryComplexity
		want     models.QueryComplexity
	}{
		{"exact", "<complexity>complex</complexity>", models.ComplexityStandard, models.ComplexityComplex},
		{"uppercase", "<complexity>COMPREHENSIVE</complexity>", models.ComplexityStandard, models.ComplexityComprehensive},
		{"padded prose", "<complexity>This is a standard query.</complexity>", models.ComplexitySimple, models.ComplexityStandard},
		{"missing orchestrator default", "no tag", models.ComplexityStandard, models.ComplexityStandard},
		{"missing replay default", "no tag", models.ComplexitySimple, models.ComplexitySimple},
		{"garbage value", "<complexity>enormous</complexity>", models.ComplexityStandard, models.ComplexityStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Complexity(tt.text, tt.fallback); got != tt.want {
				t.Errorf("Complexity = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApproachDefault(t *testing.T) {
	if got := Approach("nothing stated"); got != DefaultApproach {
		t.Errorf("Approach = %q, want default", got)
	}
	if got := Approach("<approach>correlate sleep with HRV</approach>"); got != "correlate sleep with HRV" {
		t.Errorf("Approach = %q", got)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"plain float", "<confidence>0.9</confidence>", 0.9},
		{"first float wins", "<confidence>around 0.8 maybe 0.3</confidence>", 0.8},
		{"percent", "<confidence>85%</confidence>", 0.85},
		{"over one scales", "<confidence>90</confidence>", 0.9},
		{"missing tag", "no confidence stated", DefaultConfidence},
		{"no number in tag", "<confidence>fairly sure</confidence>", DefaultConfidence},
		{"negative clamps", "<confidence>-0.5</confidence>", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Confidence(tt.text); got != tt.want {
				t.Errorf("Confidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestList(t *testing.T) {
	text := `<recommendations>
- Reduce evening caffeine
* Track bedtime for two weeks
1. Discuss dosage with pharmacy

</recommendations>`

	got := List(text, "recommendations")
	want := []string{"Reduce evening caffeine", "Track bedtime for two weeks", "Discuss dosage with pharmacy"}
	if len(got) != len(want) {
		t.Fatalf("List returned %d items, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}

	if items := List("no tag", "recommendations"); items != nil {
		t.Errorf("missing tag should return nil, got %v", items)
	}
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{"bare object", `{"score": 0.8}`, `{"score": 0.8}`, true},
		{"leading prose", `Here is my judgment: {"score": 0.8} hope that helps`, `{"score": 0.8}`, true},
		{"nested", `{"a": {"b": 1}} trailing`, `{"a": {"b": 1}}`, true},
		{"brace in string", `{"reason": "uses { and } freely"}`, `{"reason": "uses { and } freely"}`, true},
		{"escaped quote", `{"reason": "said \"{\" once"}`, `{"reason": "said \"{\" once"}`, true},
		{"no object", "nothing structured", "", false},
		{"unbalanced", `{"score": 0.8`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := FirstJSONObject(tt.text)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllTagsOrder(t *testing.T) {
	text := "<task>one</task> filler <task>two</task>"
	got := AllTags(text, "task")
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("AllTags = %v, want [one two]", got)
	}
	if strings.Join(got, ",") != "one,two" {
		t.Errorf("order not preserved: %v", got)
	}
}
