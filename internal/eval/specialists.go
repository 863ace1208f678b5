package eval

import (
	"sort"

	"github.com/openrounds/rounds/pkg/models"
)

// SpecialistMatch is the deterministic specialist-selection comparison.
type SpecialistMatch struct {
	// Precision and Recall are credit-weighted over actual and expected sets.
	Precision float64
	Recall    float64
	// F1 is the weighted similarity used for scoring and acceptability.
	F1 float64
	// Exact lists expected specialists matched verbatim.
	Exact []string
	// Substituted maps an expected specialist to the actual one that covered
	// it through an equivalence group.
	Substituted map[string]string
	// MissingCritical lists expected specialists with no exact or substituted
	// cover. These gate acceptability independent of the numeric score.
	MissingCritical []string
	// Unexpected lists actual specialists that matched nothing expected.
	Unexpected []string
	// Acceptable is the verdict: similarity at or above the configured floor
	// and at most one missing-critical specialist.
	Acceptable bool
}

// MatchSpecialists compares expected against actual specialist sets. An exact
// match earns full credit; an equivalence-group substitution earns the
// configured discount; each actual specialist covers at most one expectation.
func MatchSpecialists(cfg Config, expected []string, actual []models.SpecialistType) SpecialistMatch {
	match := SpecialistMatch{Substituted: make(map[string]string)}

	actualLeft := make(map[string]bool)
	for _, a := range actual {
		actualLeft[string(a)] = true
	}

	var credit float64
	for _, want := range expected {
		if actualLeft[want] {
			delete(actualLeft, want)
			match.Exact = append(match.Exact, want)
			credit += 1.0
			continue
		}
		var substitute string
		for _, a := range actual {
			got := string(a)
			if actualLeft[got] && cfg.equivalent(want, got) {
				substitute = got
				break
			}
		}
		if substitute != "" {
			delete(actualLeft, substitute)
			match.Substituted[want] = substitute
			credit += cfg.SubstitutionCredit
			continue
		}
		match.MissingCritical = append(match.MissingCritical, want)
	}
	for got := range actualLeft {
		match.Unexpected = append(match.Unexpected, got)
	}
	sort.Strings(match.MissingCritical)
	sort.Strings(match.Unexpected)

	if len(actual) > 0 {
		match.Precision = credit / float64(len(actual))
	}
	if len(expected) > 0 {
		match.Recall = credit / float64(len(expected))
	}
	if match.Precision+match.Recall > 0 {
		match.F1 = 2 * match.Precision * match.Recall / (match.Precision + match.Recall)
	}

	match.Acceptable = match.F1 >= cfg.AcceptableSimilarity && len(match.MissingCritical) <= 1
	return match
}
