package prompts

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/Adam5647/BaselineAnalysis/internal/model"
	"github.com/Adam5647/BaselineAnalysis/internal/survey"
)

const (
	// DefaultMaxWords bounds the whitespace-separated tokens in a block.
	DefaultMaxWords = 3000
	// DefaultTopResponses is how many responses per question a district block lists.
	DefaultTopResponses = 2
	// TruncationMarker is appended to blocks cut at the word limit.
	TruncationMarker = "... [truncated for processing]"
)

// Builder serializes survey data into bounded text blocks for summarization.
// The zero value uses the defaults and no grouped sub-questions.
type Builder struct {
	MaxWords     int
	TopResponses int
	Grouped      []survey.GroupPattern
}

// NewBuilder returns a Builder for the survey's grouped sub-question patterns.
func NewBuilder(def *survey.Definition, maxWords int) *Builder {
	b := &Builder{MaxWords: maxWords, TopResponses: DefaultTopResponses}
	if def != nil {
		b.Grouped = def.Grouped
	}
	return b
}

func (b *Builder) maxWords() int {
	if b.MaxWords <= 0 {
		return DefaultMaxWords
	}
	return b.MaxWords
}

// ResponsesPerQuestion is how many responses per question DistrictBlock lists.
func (b *Builder) ResponsesPerQuestion() int {
	if b.TopResponses <= 0 {
		return DefaultTopResponses
	}
	return b.TopResponses
}

// ParticipantBlock renders one participant's answers as "Q:/A:" pairs in
// input order. Rows matching a grouped pattern are collected and emitted
// after the other pairs as a single block per pattern, sorted by label.
func (b *Builder) ParticipantBlock(records []model.ResponseRecord) string {
	var lines []string
	grouped := make([]map[string]string, len(b.Grouped))

	for _, r := range records {
		q := strings.TrimSpace(r.Question)
		resp := strings.TrimSpace(r.Response)
		if i := b.groupOf(q); i >= 0 {
			if grouped[i] == nil {
				grouped[i] = make(map[string]string)
			}
			grouped[i][q] = resp
			continue
		}
		lines = append(lines, "Q: "+q+"\nA: "+resp)
	}

	for i, subs := range grouped {
		if len(subs) == 0 {
			continue
		}
		p := b.Grouped[i]
		lines = append(lines, "Q: "+groupHeader(p)+"\nA:")

		type sub struct{ label, question string }
		keys := make([]sub, 0, len(subs))
		for q := range subs {
			keys = append(keys, sub{label: p.Label(q), question: q})
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].label != keys[j].label {
				return keys[i].label < keys[j].label
			}
			return keys[i].question < keys[j].question
		})
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("- [%s] %s", k.label, subs[k.question]))
		}
	}

	return Truncate(sanitize(strings.Join(lines, "\n")), b.maxWords())
}

func (b *Builder) groupOf(question string) int {
	for i, p := range b.Grouped {
		if p.Matches(question) {
			return i
		}
	}
	return -1
}

func groupHeader(p survey.GroupPattern) string {
	if p.Header != "" {
		return p.Header
	}
	return strings.TrimSpace(p.Prefix + " " + p.Contains)
}

// DistrictBlock renders a fixed-order district report: name, knowledge
// totals and percentages, then the most frequent responses per open-ended
// question.
func (b *Builder) DistrictBlock(stats model.DistrictStats, top []model.QuestionDistribution) string {
	s := stats.Summary
	var sb strings.Builder
	fmt.Fprintf(&sb, "District Name: %s\n", stats.District)
	fmt.Fprintf(&sb, "Number of Knowledge-Based Responses: %d\n", s.Total)
	fmt.Fprintf(&sb, "Correct Answers: %d (%.2f%%)\n", s.Correct, s.PercentCorrect)
	fmt.Fprintf(&sb, "Incorrect Answers: %d (%.2f%%)\n\n", s.Incorrect, s.PercentIncorrect)

	n := b.ResponsesPerQuestion()
	fmt.Fprintf(&sb, "Most Common Subjective Responses (Top %d per Question):\n", n)
	if len(top) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, qd := range top {
		sb.WriteString("Q: " + qd.Question + "\n")
		for i, e := range qd.Entries {
			if i == n {
				break
			}
			fmt.Fprintf(&sb, "- %s (%d, %.2f%%)\n", e.Response, e.Count, e.Percentage)
		}
	}

	return Truncate(sanitize(sb.String()), b.maxWords())
}

// Truncate keeps the first maxWords whitespace-separated tokens, rejoined
// with single spaces, and appends TruncationMarker. Text within the limit is
// returned unchanged.
func Truncate(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "\n\n" + TruncationMarker
}

// sanitize replaces control characters other than newline with spaces.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}
