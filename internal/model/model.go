package model

import (
	"time"
)

// QuestionType classifies a survey row as scored or free-form.
type QuestionType string

const (
	// KnowledgeBased rows carry a correct/incorrect remark.
	KnowledgeBased QuestionType = "knowledge"
	// OpenEnded rows are analysed by response frequency only.
	OpenEnded QuestionType = "open"
)

// Remark values that mark a knowledge-based row.
const (
	RemarkCorrect   = "correct"
	RemarkIncorrect = "incorrect"
)

// ResponseRecord is one normalized spreadsheet row. A multi-select answer
// spans several records, one per selected option.
type ResponseRecord struct {
	District string `json:"district"`
	Name     string `json:"name"`
	Question string `json:"question"`
	Response string `json:"response"`
	Remark   string `json:"remark"`
}

// Participant returns the "District - Name" key identifying a respondent.
func (r ResponseRecord) Participant() string {
	return ParticipantKey(r.District, r.Name)
}

// ParticipantKey joins a district and a name into a participant key.
func ParticipantKey(district, name string) string {
	return district + " - " + name
}

// GroupBy selects the aggregation dimension for knowledge summaries.
type GroupBy string

const (
	GroupByDistrict GroupBy = "district"
	GroupByQuestion GroupBy = "question"
)

// Filter restricts the record set passed to the engines.
type Filter struct {
	Districts []string // nil means all districts; empty non-nil means none
	Question  string   // empty means all questions
}

// GroupSummary holds correct/incorrect counts for one district or question.
type GroupSummary struct {
	Group            string  `json:"group"`
	Correct          int     `json:"correct"`
	Incorrect        int     `json:"incorrect"`
	Total            int     `json:"total"`
	PercentCorrect   float64 `json:"percent_correct"`
	PercentIncorrect float64 `json:"percent_incorrect"`
}

// ScoreResult is one participant's outcome on a multi-select answer key.
type ScoreResult struct {
	Participant         string   `json:"participant"`
	Selected            []string `json:"selected"`
	FullyCorrect        bool     `json:"fully_correct"`
	HasInvalidSelection bool     `json:"has_invalid_selection"`
	PercentCorrect      float64  `json:"percent_correct"`
}

// DistributionEntry is the share of rows that gave a response text.
type DistributionEntry struct {
	Response   string  `json:"response"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// QuestionDistribution pairs an open-ended question with its leading responses.
type QuestionDistribution struct {
	Question string              `json:"question"`
	Entries  []DistributionEntry `json:"entries"`
}

// DistrictStats summarizes knowledge-based answers inside one district.
type DistrictStats struct {
	District string       `json:"district"`
	Summary  GroupSummary `json:"summary"`
}

// InsightKind identifies what an insight was generated for.
type InsightKind string

const (
	InsightParticipant InsightKind = "participant"
	InsightDistrict    InsightKind = "district"
)

// Insight is a generated narrative summary.
type Insight struct {
	ID         int64       `json:"id,omitempty"`
	Kind       InsightKind `json:"kind"`
	Subject    string      `json:"subject"`
	PromptHash string      `json:"prompt_hash"`
	Model      string      `json:"model"`
	Prompt     string      `json:"prompt,omitempty"`
	Response   string      `json:"response"`
	Cached     bool        `json:"cached"`
	CreatedAt  time.Time   `json:"created_at"`
}

// DatasetLoad records a successful read of the response spreadsheet.
type DatasetLoad struct {
	ID       int64     `json:"id"`
	Path     string    `json:"path"`
	Hash     string    `json:"hash"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
}

// ServerConfig holds runtime HTTP parameters set via CLI flags.
type ServerConfig struct {
	DefaultTopN int    // responses per question when n is omitted
	AdminHash   []byte // bcrypt hash guarding admin routes; nil disables them
	Lang        string
}
