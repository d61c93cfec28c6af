package analysis

import (
	"sort"

	"github.com/Adam5647/BaselineAnalysis/internal/model"
	"github.com/Adam5647/BaselineAnalysis/internal/survey"
)

// AggregateByGroup counts correct and incorrect knowledge-based rows per
// district or per question. Every group present in records is reported,
// including groups whose rows are all open-ended (Total 0). Results are
// sorted by group name.
func AggregateByGroup(records []model.ResponseRecord, by model.GroupBy) []model.GroupSummary {
	key := func(r model.ResponseRecord) string { return r.District }
	if by == model.GroupByQuestion {
		key = func(r model.ResponseRecord) string { return r.Question }
	}

	groups := make(map[string]*model.GroupSummary)
	for _, r := range records {
		k := key(r)
		g, ok := groups[k]
		if !ok {
			g = &model.GroupSummary{Group: k}
			groups[k] = g
		}
		switch normalizeRemark(r.Remark) {
		case model.RemarkCorrect:
			g.Correct++
		case model.RemarkIncorrect:
			g.Incorrect++
		}
	}

	out := make([]model.GroupSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, finish(*g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

// Summarize totals every knowledge-based row in records under one label.
func Summarize(label string, records []model.ResponseRecord) model.GroupSummary {
	g := model.GroupSummary{Group: label}
	for _, r := range records {
		switch normalizeRemark(r.Remark) {
		case model.RemarkCorrect:
			g.Correct++
		case model.RemarkIncorrect:
			g.Incorrect++
		}
	}
	return finish(g)
}

// DistrictStats summarizes the knowledge-based rows of one district.
func DistrictStats(records []model.ResponseRecord, district string) model.DistrictStats {
	rows := Apply(records, model.Filter{Districts: []string{district}})
	return model.DistrictStats{District: district, Summary: Summarize(district, rows)}
}

func finish(g model.GroupSummary) model.GroupSummary {
	g.Total = g.Correct + g.Incorrect
	g.PercentCorrect = Percent(g.Correct, g.Total)
	g.PercentIncorrect = Percent(g.Incorrect, g.Total)
	return g
}

// ScoreMultiSelect evaluates each participant's selected options for
// question against the correct and invalidating option sets. Participants
// without rows for question are omitted. Results are sorted by participant.
//
// Selecting an option that is neither correct nor invalid does not reduce
// PercentCorrect, which only counts the intersection with correct, but it
// does break set equality and therefore FullyCorrect.
func ScoreMultiSelect(records []model.ResponseRecord, question string, correct, invalid map[string]struct{}) []model.ScoreResult {
	type selection struct {
		order []string
		set   map[string]struct{}
	}
	byParticipant := make(map[string]*selection)
	for _, r := range records {
		if r.Question != question {
			continue
		}
		p := r.Participant()
		sel, ok := byParticipant[p]
		if !ok {
			sel = &selection{set: make(map[string]struct{})}
			byParticipant[p] = sel
		}
		if _, dup := sel.set[r.Response]; !dup {
			sel.set[r.Response] = struct{}{}
			sel.order = append(sel.order, r.Response)
		}
	}

	out := make([]model.ScoreResult, 0, len(byParticipant))
	for p, sel := range byParticipant {
		hits := 0
		invalidPicked := false
		for opt := range sel.set {
			if _, ok := correct[opt]; ok {
				hits++
			}
			if _, ok := invalid[opt]; ok {
				invalidPicked = true
			}
		}
		exact := hits == len(correct) && len(sel.set) == len(correct)
		out = append(out, model.ScoreResult{
			Participant:         p,
			Selected:            sel.order,
			FullyCorrect:        exact && !invalidPicked,
			HasInvalidSelection: invalidPicked,
			PercentCorrect:      Percent(hits, len(correct)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Participant < out[j].Participant })
	return out
}

// ScoreAnswerKey runs ScoreMultiSelect for a configured answer key.
func ScoreAnswerKey(records []model.ResponseRecord, key survey.AnswerKey) []model.ScoreResult {
	return ScoreMultiSelect(records, key.Question, key.CorrectSet(), key.InvalidSet())
}
