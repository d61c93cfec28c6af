package handler

import (
	"net/http"
	"strconv"

	appI18n "github.com/Adam5647/BaselineAnalysis/internal/i18n"
	"github.com/Adam5647/BaselineAnalysis/internal/insight"
	"github.com/Adam5647/BaselineAnalysis/internal/model"
)

type insightResponse struct {
	Message string         `json:"message"`
	Insight *model.Insight `json:"insight"`
}

func (h *Handler) handleParticipantPrompt(w http.ResponseWriter, r *http.Request) {
	h.servePreview(w, r, h.insights.ParticipantPreview, pathParam(r, "participant"))
}

func (h *Handler) handleDistrictPrompt(w http.ResponseWriter, r *http.Request) {
	h.servePreview(w, r, h.insights.DistrictPreview, pathParam(r, "district"))
}

func (h *Handler) servePreview(w http.ResponseWriter, r *http.Request, preview func([]model.ResponseRecord, string) (insight.Preview, error), subject string) {
	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	p, err := preview(recs, subject)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleParticipantInsight(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	in, err := h.insights.Participant(r.Context(), recs, pathParam(r, "participant"))
	h.writeInsight(w, r, in, err)
}

func (h *Handler) handleDistrictInsight(w http.ResponseWriter, r *http.Request) {
	recs, ok := h.records(w, r)
	if !ok {
		return
	}
	in, err := h.insights.District(r.Context(), recs, pathParam(r, "district"))
	h.writeInsight(w, r, in, err)
}

func (h *Handler) writeInsight(w http.ResponseWriter, r *http.Request, in *model.Insight, err error) {
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	msgID := "InsightGenerated"
	if in.Cached {
		msgID = "InsightCached"
	}
	writeJSON(w, http.StatusOK, insightResponse{Message: appI18n.T(r.Context(), msgID), Insight: in})
}

func (h *Handler) handleListInsights(w http.ResponseWriter, r *http.Request) {
	kind := model.InsightKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", model.InsightParticipant, model.InsightDistrict:
	default:
		writeError(w, r, http.StatusBadRequest, "InvalidParam", map[string]any{"Param": "kind"})
		return
	}
	if h.store == nil {
		writeList(w, r, model.Filter{}, []model.Insight{})
		return
	}
	list, err := h.store.ListInsights(kind, r.URL.Query().Get("subject"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeList(w, r, model.Filter{}, list)
}

func (h *Handler) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidParam", map[string]any{"Param": "id"})
		return
	}
	var in *model.Insight
	if h.store != nil {
		if in, err = h.store.GetInsight(id); err != nil {
			writeFailure(w, r, err)
			return
		}
	}
	if in == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, in)
}
