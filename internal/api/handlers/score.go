package handlers

import (
	"fmt"
	"net/http"

	"github.com/ramonehamilton/nft-rarity/internal/api/response"
	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
)

// ScoreHandler ranks posted collections without storing them.
type ScoreHandler struct {
	svc RankingService
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(svc RankingService) *ScoreHandler {
	return &ScoreHandler{svc: svc}
}

// ScoreResult is the response of an ad-hoc scoring request.
type ScoreResult struct {
	Stats rarity.Stats        `json:"stats"`
	Items []rarity.RankedItem `json:"items"`
}

// Score ranks the posted items. ?top=N truncates the result.
func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r.URL.Query().Get("top"), 0)
	if err != nil {
		response.BadRequest(w, fmt.Errorf("top: %w", err))
		return
	}

	var doc metadata.RawCollection
	if err := response.Decode(r, &doc); err != nil {
		response.BadRequest(w, err)
		return
	}
	items, err := metadata.NormalizeAll(doc.Items)
	if err != nil {
		writeError(w, err)
		return
	}

	ranked, stats, err := h.svc.Score(items)
	if err != nil {
		writeError(w, err)
		return
	}
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}
	response.Success(w, ScoreResult{Stats: stats, Items: ranked})
}
