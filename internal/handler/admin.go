package handler

import (
	"log/slog"
	"net/http"
	"time"

	appI18n "github.com/Adam5647/BaselineAnalysis/internal/i18n"
	"github.com/Adam5647/BaselineAnalysis/internal/model"
)

type reloadResponse struct {
	Message string    `json:"message"`
	Path    string    `json:"path"`
	Hash    string    `json:"hash"`
	Rows    int       `json:"rows"`
	At      time.Time `json:"loaded_at"`
}

// handleReload rereads the dataset file. On failure the previously loaded
// copy stays in service.
func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	res, err := h.data.Reload(r.Context())
	if err != nil {
		slog.Error("dataset reload failed", "error", err)
		writeFailure(w, r, err)
		return
	}
	slog.Info("dataset reloaded via admin", "path", res.Path, "rows", len(res.Records))
	writeJSON(w, http.StatusOK, reloadResponse{
		Message: appI18n.T(r.Context(), "DatasetReloaded"),
		Path:    res.Path,
		Hash:    res.Hash,
		Rows:    len(res.Records),
		At:      h.data.LoadedAt(),
	})
}

// handleInvalidate drops the cached dataset. The next data request reads
// the file again.
func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	h.data.Invalidate()
	slog.Info("dataset cache invalidated via admin")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": appI18n.T(r.Context(), "DatasetInvalidated"),
	})
}

type statusResponse struct {
	Model     string             `json:"model"`
	Language  string             `json:"language"`
	Languages []string           `json:"languages"`
	Rows      int                `json:"rows"`
	LoadedAt  *time.Time         `json:"loaded_at,omitempty"`
	LastLoad  *model.DatasetLoad `json:"last_load,omitempty"`
	Insights  int                `json:"insights"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Model:     h.insights.Model(),
		Language:  h.config.Lang,
		Languages: appI18n.Languages(),
	}
	if cur := h.data.Current(); cur != nil {
		resp.Rows = len(cur.Records)
		at := h.data.LoadedAt()
		resp.LoadedAt = &at
	}
	if h.store != nil {
		last, err := h.store.LatestDatasetLoad()
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		resp.LastLoad = last
		if resp.Insights, err = h.store.InsightCount(); err != nil {
			writeFailure(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
