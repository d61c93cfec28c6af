package model

import "time"

// SurveyReport is the top-level JSON structure for the report export.
type SurveyReport struct {
	Source      string                 `json:"source"`
	GeneratedAt time.Time              `json:"generated_at"`
	Districts   []string               `json:"districts"`
	Records     int                    `json:"records"`
	ByDistrict  []GroupSummary         `json:"by_district"`
	ByQuestion  []GroupSummary         `json:"by_question"`
	AnswerKeys  []AnswerKeyReport      `json:"answer_keys"`
	TopAnswers  []QuestionDistribution `json:"top_answers"`
}

// AnswerKeyReport holds the per-participant scores for one answer key.
type AnswerKeyReport struct {
	Name     string        `json:"name"`
	Question string        `json:"question"`
	Scores   []ScoreResult `json:"scores"`
}
