package specialist

import (
	"fmt"
	"strings"

	"github.com/openrounds/rounds/pkg/models"
)

// systemPrompt frames one specialist's bounded role.
func systemPrompt(specialist models.SpecialistType) string {
	domain := strings.ReplaceAll(string(specialist), "_", " ")
	return fmt.Sprintf(`You are a %s specialist on a health analysis team.
Work only within your domain. Use the query_health_data tool to ground every
claim in the user's actual records. Be specific about dates and values.
Do not speculate beyond what the data supports.`, domain)
}

// taskPrompt renders the task handed down by the orchestrator.
func taskPrompt(task models.SpecialistTask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", task.Objective)
	if task.Context != "" {
		fmt.Fprintf(&b, "\nContext:\n%s\n", task.Context)
	}
	if task.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\nExpected output:\n%s\n", task.ExpectedOutput)
	}
	fmt.Fprintf(&b, "\nYou may make up to %d data queries before summarizing.", task.MaxToolCalls)
	return b.String()
}

// summaryPrompt asks for the structured wrap-up after the tool loop ends.
const summaryPrompt = `Summarize your analysis. Respond with exactly these sections:

<findings>
Your narrative of what the data shows.
</findings>

<recommendations>
- One recommendation per line
</recommendations>

<concerns>
- One concern per line, or leave empty if none
</concerns>

<confidence>
A number between 0 and 1 reflecting how confident you are.
</confidence>`
