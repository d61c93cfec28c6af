package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adam5647/BaselineAnalysis/internal/analysis"
	"github.com/Adam5647/BaselineAnalysis/internal/dataset"
	"github.com/Adam5647/BaselineAnalysis/internal/export"
	"github.com/Adam5647/BaselineAnalysis/internal/model"
	"github.com/Adam5647/BaselineAnalysis/internal/survey"
)

func (h *Handler) handleDistricts(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	writeList(w, r, model.Filter{}, dataset.Districts(recs))
}

func (h *Handler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	f := filterFrom(r)
	writeList(w, r, f, dataset.Participants(analysis.Apply(recs, f)))
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	qt := model.QuestionType(r.URL.Query().Get("type"))
	switch qt {
	case "", model.KnowledgeBased, model.OpenEnded:
	default:
		writeError(w, r, http.StatusBadRequest, "InvalidParam", map[string]any{"Param": "type"})
		return
	}
	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	f := filterFrom(r)
	f.Question = ""
	writeList(w, r, f, analysis.Questions(analysis.Apply(recs, f), qt))
}

func (h *Handler) handleSummary(by model.GroupBy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, ok := h.records(w, r)
		if !ok {
			return
		}
		f := filterFrom(r)
		writeList(w, r, f, analysis.AggregateByGroup(analysis.Apply(recs, f), by))
	}
}

func (h *Handler) handleAnswerKeys(w http.ResponseWriter, r *http.Request) {
	writeList(w, r, model.Filter{}, h.survey.AnswerKeys)
}

// handleAnswerKeyScores scores the filtered records against every answer
// key, or only the one named by the "key" parameter or configured for the
// "question" parameter.
func (h *Handler) handleAnswerKeyScores(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("key")
	keys := h.survey.AnswerKeys
	if q := r.URL.Query().Get("question"); name == "" && q != "" {
		k, found := h.survey.Key(q)
		if !found {
			writeFailure(w, r, fmt.Errorf("%w: %q", model.ErrUnknownAnswerKey, q))
			return
		}
		keys = []survey.AnswerKey{k}
	} else if name != "" {
		keys = nil
		for _, k := range h.survey.AnswerKeys {
			if k.Name == name {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			writeFailure(w, r, fmt.Errorf("%w: %q", model.ErrUnknownAnswerKey, name))
			return
		}
	}

	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	f := filterFrom(r)
	f.Question = ""
	recs = analysis.Apply(recs, f)

	reports := make([]model.AnswerKeyReport, 0, len(keys))
	for _, k := range keys {
		reports = append(reports, model.AnswerKeyReport{
			Name:     k.Name,
			Question: k.Question,
			Scores:   analysis.ScoreAnswerKey(recs, k),
		})
	}
	writeList(w, r, f, reports)
}

// handleDistribution returns the response distribution of one open-ended
// question, limited to n entries when n is given.
func (h *Handler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	f := filterFrom(r)
	if f.Question == "" {
		writeError(w, r, http.StatusBadRequest, "InvalidParam", map[string]any{"Param": "question"})
		return
	}
	n, valid := intParam(r, "n", -1)
	if !valid {
		writeError(w, r, http.StatusBadRequest, "InvalidParam", map[string]any{"Param": "n"})
		return
	}
	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	recs = analysis.Apply(recs, f)

	var entries []model.DistributionEntry
	if n < 0 {
		entries = analysis.Distribution(recs, f.Question)
	} else {
		entries = analysis.TopN(recs, f.Question, n)
	}
	writeList(w, r, f, entries)
}

func (h *Handler) handleTopResponses(w http.ResponseWriter, r *http.Request) {
	n, valid := intParam(r, "n", h.config.DefaultTopN)
	if !valid {
		writeError(w, r, http.StatusBadRequest, "InvalidParam", map[string]any{"Param": "n"})
		return
	}
	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	f := filterFrom(r)
	writeList(w, r, f, analysis.TopPerQuestion(analysis.Apply(recs, f), n))
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="survey_responses.csv"`)
	if err := export.WriteCSV(w, analysis.Apply(recs, filterFrom(r))); err != nil {
		slog.Error("write csv export", "error", err)
	}
}
