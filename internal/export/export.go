// Package export writes the dataset and its summaries to files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Adam5647/BaselineAnalysis/internal/analysis"
	"github.com/Adam5647/BaselineAnalysis/internal/dataset"
	"github.com/Adam5647/BaselineAnalysis/internal/model"
	"github.com/Adam5647/BaselineAnalysis/internal/survey"
)

// Header is the column row written by WriteCSV.
var Header = []string{"District", "Name", "Question", "Responses", "Remark"}

// WriteCSV writes records in input order under Header.
func WriteCSV(w io.Writer, records []model.ResponseRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write([]string{r.District, r.Name, r.Question, r.Response, r.Remark}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// BuildReport summarizes records: knowledge totals per district and per
// question, every configured answer key's scores, and the topN responses per
// open-ended question.
func BuildReport(source string, records []model.ResponseRecord, def *survey.Definition, topN int) model.SurveyReport {
	report := model.SurveyReport{
		Source:      source,
		GeneratedAt: time.Now().UTC(),
		Districts:   dataset.Districts(records),
		Records:     len(records),
		ByDistrict:  analysis.AggregateByGroup(records, model.GroupByDistrict),
		ByQuestion:  analysis.AggregateByGroup(records, model.GroupByQuestion),
		AnswerKeys:  []model.AnswerKeyReport{},
		TopAnswers:  analysis.TopPerQuestion(records, topN),
	}
	if def != nil {
		for _, key := range def.AnswerKeys {
			report.AnswerKeys = append(report.AnswerKeys, model.AnswerKeyReport{
				Name:     key.Name,
				Question: key.Question,
				Scores:   analysis.ScoreAnswerKey(records, key),
			})
		}
	}
	return report
}

// WriteReport writes report as indented JSON followed by a newline.
func WriteReport(w io.Writer, report model.SurveyReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
