package analysis

import (
	"sort"

	"github.com/Adam5647/BaselineAnalysis/internal/model"
)

// Distribution returns the share of open-ended rows for question that gave
// each response text, highest first. Ties keep first-seen order. Rows with
// an empty response are left out of both the entries and the denominator.
func Distribution(records []model.ResponseRecord, question string) []model.DistributionEntry {
	var order []string
	counts := make(map[string]int)
	total := 0
	for _, r := range records {
		if r.Question != question || r.Response == "" || Classify(r.Remark) != model.OpenEnded {
			continue
		}
		if _, ok := counts[r.Response]; !ok {
			order = append(order, r.Response)
		}
		counts[r.Response]++
		total++
	}

	out := make([]model.DistributionEntry, 0, len(order))
	for _, resp := range order {
		out = append(out, model.DistributionEntry{
			Response:   resp,
			Count:      counts[resp],
			Percentage: Percent(counts[resp], total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// TopN returns at most n leading entries of Distribution.
func TopN(records []model.ResponseRecord, question string, n int) []model.DistributionEntry {
	if n <= 0 {
		return []model.DistributionEntry{}
	}
	d := Distribution(records, question)
	if len(d) > n {
		d = d[:n]
	}
	return d
}

// TopPerQuestion returns the n most frequent responses for every open-ended
// question in records, ordered by question text.
func TopPerQuestion(records []model.ResponseRecord, n int) []model.QuestionDistribution {
	questions := Questions(records, model.OpenEnded)
	sort.Strings(questions)

	out := make([]model.QuestionDistribution, 0, len(questions))
	for _, q := range questions {
		entries := TopN(records, q, n)
		if len(entries) == 0 {
			continue
		}
		out = append(out, model.QuestionDistribution{Question: q, Entries: entries})
	}
	return out
}
