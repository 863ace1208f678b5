package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openrounds/rounds/pkg/models"
)

const leadSystemPrompt = `You are the lead physician coordinating a team of
health-data specialists. You classify queries, plan which specialists to
involve, and synthesize their findings into one clear answer grounded in the
user's actual data.`

// analysisPrompt opens stage 1. The model may make one data-gathering query
// before classifying.
func analysisPrompt(query string) string {
	return fmt.Sprintf(`A user asked: %q

You may make one query_health_data call to get a feel for the available data
before classifying. Then briefly note what the query involves.`, query)
}

// classificationPrompt is the no-tool follow-up that pins down complexity
// and approach.
const classificationPrompt = `Based on the query and any data you saw, state your classification:

<complexity>
One of: simple, standard, complex, comprehensive
</complexity>

<approach>
One or two sentences describing the analytical approach.
</approach>`

// taskCreationPrompt asks for the specialist task decomposition.
func taskCreationPrompt(query string, complexity models.QueryComplexity, approach, initialData string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %q\nComplexity: %s\nApproach: %s\n", query, complexity, approach)
	if initialData != "" {
		fmt.Fprintf(&b, "\nInitial data summary:\n%s\n", initialData)
	}

	specialists := make([]string, 0)
	for _, s := range models.AllSpecialists() {
		specialists = append(specialists, string(s))
	}

	fmt.Fprintf(&b, `
Create exactly %d specialist tasks. Available specialists: %s.

Format each task as:
<task>
  <specialist>name</specialist>
  <objective>what to determine</objective>
  <context>relevant background</context>
  <expected_output>what the answer should contain</expected_output>
  <priority>1-4, lower runs first</priority>
</task>`, complexity.SpecialistCount(), strings.Join(specialists, ", "))
	return b.String()
}

// synthesisPrompt renders the result digest for the final narrative call.
func synthesisPrompt(query string, results map[models.SpecialistType]*models.SpecialistResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %q\n\nSpecialist findings:\n", query)

	// Deterministic digest order; the result map itself is unordered.
	specialists := make([]models.SpecialistType, 0, len(results))
	for s := range results {
		specialists = append(specialists, s)
	}
	sort.Slice(specialists, func(i, j int) bool { return specialists[i] < specialists[j] })

	for _, s := range specialists {
		r := results[s]
		fmt.Fprintf(&b, "\n## %s (confidence %.2f, %d data queries)\n", s, r.ConfidenceLevel, r.ToolCallsMade)
		fmt.Fprintf(&b, "Findings: %s\n", r.Findings)
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "Recommendation: %s\n", rec)
		}
		for _, c := range r.Concerns {
			fmt.Fprintf(&b, "Concern: %s\n", c)
		}
	}

	b.WriteString(`
Write the final answer for the user. Open with a direct one-paragraph answer
to their question, then elaborate on the supporting findings. Note any
specialist concerns. If some specialists could not complete, answer with what
is available and say so.`)
	return b.String()
}
