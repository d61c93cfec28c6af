package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Adam5647/BaselineAnalysis/internal/dataset"
	appI18n "github.com/Adam5647/BaselineAnalysis/internal/i18n"
	"github.com/Adam5647/BaselineAnalysis/internal/insight"
	"github.com/Adam5647/BaselineAnalysis/internal/llm"
	"github.com/Adam5647/BaselineAnalysis/internal/model"
	"github.com/Adam5647/BaselineAnalysis/internal/store"
	"github.com/Adam5647/BaselineAnalysis/internal/survey"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	data     *dataset.Cache
	survey   *survey.Definition
	insights *insight.Service
	store    *store.Store
	config   model.ServerConfig
}

// New creates a new Handler. st may be nil, in which case insight history
// endpoints return empty results.
func New(data *dataset.Cache, def *survey.Definition, svc *insight.Service, st *store.Store, cfg model.ServerConfig) (*Handler, error) {
	if data == nil || def == nil || svc == nil {
		return nil, errors.New("handler: dataset, survey definition and insight service are required")
	}
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = 2
	}
	if cfg.Lang == "" {
		cfg.Lang = appI18n.Default.String()
	}
	return &Handler{data: data, survey: def, insights: svc, store: st, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)

		r.Get("/districts", h.handleDistricts)
		r.Get("/participants", h.handleParticipants)
		r.Get("/questions", h.handleQuestions)
		r.Get("/summary/districts", h.handleSummary(model.GroupByDistrict))
		r.Get("/summary/questions", h.handleSummary(model.GroupByQuestion))
		r.Get("/answer-keys", h.handleAnswerKeys)
		r.Get("/answer-keys/scores", h.handleAnswerKeyScores)
		r.Get("/distribution", h.handleDistribution)
		r.Get("/top-responses", h.handleTopResponses)
		r.Get("/export.csv", h.handleExportCSV)

		r.Get("/participants/{participant}/prompt", h.handleParticipantPrompt)
		r.Post("/participants/{participant}/insight", h.handleParticipantInsight)
		r.Get("/districts/{district}/prompt", h.handleDistrictPrompt)
		r.Post("/districts/{district}/insight", h.handleDistrictInsight)
		r.Get("/insights", h.handleListInsights)
		r.Get("/insights/{id}", h.handleGetInsight)

		if len(h.config.AdminHash) > 0 {
			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Post("/admin/reload", h.handleReload)
				r.Delete("/admin/dataset", h.handleInvalidate)
			})
		}
	})
}

// listResponse wraps collection results. Message is set when the filter
// selected nothing.
type listResponse struct {
	Items   any    `json:"items"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeList[T any](w http.ResponseWriter, r *http.Request, f model.Filter, items []T) {
	if items == nil {
		items = []T{}
	}
	resp := listResponse{Items: items, Count: len(items)}
	if f.Districts != nil && len(f.Districts) == 0 {
		resp.Message = appI18n.T(r.Context(), "EmptySelection")
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string, data map[string]any) {
	writeJSON(w, status, errorResponse{Error: appI18n.Td(r.Context(), msgID, data)})
}

// writeFailure maps err onto a status code and localized message.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *llm.ServiceError
	switch {
	case errors.Is(err, model.ErrParticipantNotFound):
		writeError(w, r, http.StatusNotFound, "ParticipantNotFound", map[string]any{"Name": pathParam(r, "participant")})
	case errors.Is(err, model.ErrDistrictNotFound):
		writeError(w, r, http.StatusNotFound, "DistrictNotFound", map[string]any{"Name": pathParam(r, "district")})
	case errors.Is(err, model.ErrUnknownAnswerKey):
		writeError(w, r, http.StatusNotFound, "UnknownAnswerKey", nil)
	case errors.Is(err, model.ErrDataLoad):
		writeError(w, r, http.StatusServiceUnavailable, "DatasetUnavailable", nil)
	case errors.Is(err, llm.ErrNoResponse):
		writeError(w, r, http.StatusBadGateway, "NoResponse", nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "ServiceUnreachable", map[string]any{"Detail": failureDetail(err)})
	case errors.As(err, &svcErr):
		if svcErr.Connection() {
			writeError(w, r, http.StatusBadGateway, "ServiceUnreachable", map[string]any{"Detail": failureDetail(err)})
			return
		}
		writeError(w, r, http.StatusBadGateway, "ServiceFailed", map[string]any{
			"Status": svcErr.StatusCode,
			"Body":   svcErr.Body,
		})
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// failureDetail returns the transport error text of an inference failure.
func failureDetail(err error) string {
	var svcErr *llm.ServiceError
	if errors.As(err, &svcErr) && svcErr.Err != nil {
		return svcErr.Err.Error()
	}
	return err.Error()
}

// records returns the loaded dataset, writing the failure response itself
// when the dataset is unavailable.
func (h *Handler) records(w http.ResponseWriter, r *http.Request) ([]model.ResponseRecord, bool) {
	recs, err := h.data.Records(r.Context())
	if err != nil {
		slog.Error("dataset unavailable", "error", err)
		writeFailure(w, r, err)
		return nil, false
	}
	return recs, true
}

// filterFrom reads repeated "district" parameters. Without any the filter
// selects every district; if all given values are empty it selects none.
func filterFrom(r *http.Request) model.Filter {
	q := r.URL.Query()
	f := model.Filter{Question: strings.TrimSpace(q.Get("question"))}
	values, ok := q["district"]
	if !ok {
		return f
	}
	f.Districts = []string{}
	for _, v := range values {
		if d := strings.TrimSpace(v); d != "" {
			f.Districts = append(f.Districts, d)
		}
	}
	return f
}

// intParam parses an optional non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		v = u
	}
	return strings.TrimSpace(v)
}
