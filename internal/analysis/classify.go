// Package analysis implements the scoring and distribution engines. Every
// function here is total: empty or unmatched input yields empty or
// zero-valued results, never an error.
package analysis

import (
	"strings"

	"github.com/Adam5647/BaselineAnalysis/internal/model"
)

// Classify labels a remark as knowledge-based or open-ended.
func Classify(remark string) model.QuestionType {
	switch normalizeRemark(remark) {
	case model.RemarkCorrect, model.RemarkIncorrect:
		return model.KnowledgeBased
	default:
		return model.OpenEnded
	}
}

func normalizeRemark(remark string) string {
	return strings.ToLower(strings.TrimSpace(remark))
}

// Apply returns the records matching f, preserving input order.
func Apply(records []model.ResponseRecord, f model.Filter) []model.ResponseRecord {
	var districts map[string]bool
	if f.Districts != nil {
		districts = make(map[string]bool, len(f.Districts))
		for _, d := range f.Districts {
			districts[d] = true
		}
	}

	out := make([]model.ResponseRecord, 0, len(records))
	for _, r := range records {
		if districts != nil && !districts[r.District] {
			continue
		}
		if f.Question != "" && r.Question != f.Question {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ForParticipant returns the rows belonging to a participant key.
func ForParticipant(records []model.ResponseRecord, participant string) []model.ResponseRecord {
	var out []model.ResponseRecord
	for _, r := range records {
		if r.Participant() == participant {
			out = append(out, r)
		}
	}
	return out
}

// Questions returns the distinct questions of type qt in first-seen order.
// An empty qt returns every question.
func Questions(records []model.ResponseRecord, qt model.QuestionType) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range records {
		if qt != "" && Classify(r.Remark) != qt {
			continue
		}
		if !seen[r.Question] {
			seen[r.Question] = true
			out = append(out, r.Question)
		}
	}
	return out
}

// Percent returns 100*part/total, or 0 when total is zero.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}
