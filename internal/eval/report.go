package eval

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	reportTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Padding(0, 1)

	reportHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("63")) // Blue

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")) // Green

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // Red

	degradedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Orange

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")) // Gray
)

// RenderResult formats one case result for the terminal.
func RenderResult(r *Result) string {
	var b strings.Builder

	verdict := passStyle.Render("PASS")
	if !r.Passed {
		verdict = failStyle.Render("FAIL")
	}
	b.WriteString(reportTitleStyle.Render(fmt.Sprintf("%s  %s", r.CaseID, verdict)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %s", r.Query)))
	b.WriteString("\n\n")

	b.WriteString(reportHeaderStyle.Render(fmt.Sprintf("  %-26s %7s %7s %7s  %s",
		"dimension", "score", "target", "weight", "method")))
	b.WriteString("\n")
	for _, dim := range r.Dimensions {
		line := fmt.Sprintf("  %-26s %7.2f %7.2f %7.2f  %s",
			dim.Name, dim.Score, dim.Target, dim.Weight, dim.Method)
		switch {
		case dim.Method == MethodDegraded:
			b.WriteString(degradedStyle.Render(line))
		case dim.Passed:
			b.WriteString(passStyle.Render(line))
		default:
			b.WriteString(failStyle.Render(line))
		}
		b.WriteString("\n")
	}

	overall := fmt.Sprintf("  overall %.2f / %.2f", r.OverallScore, r.OverallTarget)
	if r.OverallPassed {
		b.WriteString(passStyle.Render(overall))
	} else {
		b.WriteString(failStyle.Render(overall))
	}
	b.WriteString("\n")

	for _, failure := range r.Failures {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s: %s", failure.Dimension, failure.Explanation)))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSuite formats a suite summary table with color-coded rows.
func RenderSuite(suite Suite) string {
	var b strings.Builder

	b.WriteString(reportTitleStyle.Render("Evaluation suite"))
	b.WriteString("\n\n")
	b.WriteString(reportHeaderStyle.Render(fmt.Sprintf("  %-32s %7s %8s %8s", "case", "score", "dims", "overall")))
	b.WriteString("\n")

	for _, r := range suite.Results {
		dims := passStyle.Render("pass")
		if !r.Passed {
			dims = failStyle.Render("fail")
		}
		overall := passStyle.Render("pass")
		if !r.OverallPassed {
			overall = failStyle.Render("fail")
		}
		b.WriteString(fmt.Sprintf("  %-32s %7.2f %8s %8s\n", r.CaseID, r.OverallScore, dims, overall))
	}

	b.WriteString("\n")
	summary := fmt.Sprintf("  %d/%d passed, fail rate %.0f%%, average score %.2f",
		suite.Summary.Passed, suite.Summary.Total,
		suite.Summary.FailRate*100, suite.Summary.AverageScore)
	if suite.Summary.Passed == suite.Summary.Total {
		b.WriteString(passStyle.Render(summary))
	} else {
		b.WriteString(failStyle.Render(summary))
	}
	b.WriteString("\n")
	return b.String()
}
