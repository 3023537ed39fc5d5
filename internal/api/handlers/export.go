package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/nft-rarity/internal/api/response"
	"github.com/ramonehamilton/nft-rarity/internal/charts"
	"github.com/ramonehamilton/nft-rarity/internal/export"
)

// ExportHandler serves ranking downloads and HTML charts.
type ExportHandler struct {
	svc RankingService
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(svc RankingService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// ExportRankings streams the full ranking as CSV or JSON. With
// ?table=traits the trait rarity table is exported instead.
func (h *ExportHandler) ExportRankings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := export.FormatCSV
	if v := q.Get("format"); v != "" {
		f, err := export.ParseFormat(v)
		if err != nil {
			response.BadRequest(w, err)
			return
		}
		format = f
	}

	collectionID := chi.URLParam(r, "collectionID")
	c, err := h.svc.Collection(r.Context(), collectionID)
	if err != nil {
		writeError(w, err)
		return
	}

	var (
		data any
		name = c.Slug + "_rankings"
	)
	switch q.Get("table") {
	case "", "rankings":
		ranked, err := h.svc.Ranked(r.Context(), collectionID)
		if err != nil {
			writeError(w, err)
			return
		}
		data = export.RankingRows(ranked)
	case "traits":
		table, err := h.svc.TraitTable(r.Context(), collectionID)
		if err != nil {
			writeError(w, err)
			return
		}
		data = export.TraitRows(table)
		name = c.Slug + "_traits"
	default:
		response.BadRequest(w, fmt.Errorf("unknown table %q", q.Get("table")))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.GenerateFilename(name, format)))
	if err := export.NewExporter(export.Options{Format: format}).Write(w, data); err != nil {
		// Headers are already sent.
		logWriteError("export", err)
	}
}

// TierChart renders the tier distribution as an HTML bar chart.
func (h *ExportHandler) TierChart(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), chi.URLParam(r, "collectionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	cfg := charts.DefaultChartConfig()
	cfg.Title = stats.Collection.Name
	cfg.Subtitle = fmt.Sprintf("%d items by rarity tier", stats.Index.CollectionSize)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := charts.RenderTierDistribution(w, stats.Tiers, cfg); err != nil {
		logWriteError("tier chart", err)
	}
}

// ScoreChart renders score by rank as an HTML line chart.
func (h *ExportHandler) ScoreChart(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionID")
	c, err := h.svc.Collection(r.Context(), collectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	scores, err := h.svc.ScoreCurve(r.Context(), collectionID)
	if err != nil {
		writeError(w, err)
		return
	}

	cfg := charts.DefaultChartConfig()
	cfg.Title = c.Name
	cfg.Subtitle = "Rarity score by rank"

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := charts.RenderScoreCurve(w, scores, cfg); err != nil {
		logWriteError("score chart", err)
	}
}
