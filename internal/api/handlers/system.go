package handlers

import (
	"log"
	"net/http"

	"github.com/ramonehamilton/nft-rarity/internal/api/response"
	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/metrics"
	"github.com/ramonehamilton/nft-rarity/internal/version"
)

// SystemHandler serves version and runtime metrics.
type SystemHandler struct {
	metrics *metrics.ScoringMetrics
	client  *metadata.Client
	clients func() int
}

// NewSystemHandler creates a SystemHandler. client and clients may be nil.
func NewSystemHandler(m *metrics.ScoringMetrics, client *metadata.Client, clients func() int) *SystemHandler {
	return &SystemHandler{metrics: m, client: client, clients: clients}
}

// MetricsResponse is the body of GET /system/metrics.
type MetricsResponse struct {
	Scoring          metrics.Snapshot      `json:"scoring"`
	Metadata         *metadata.ClientStats `json:"metadata,omitempty"`
	WebSocketClients int                   `json:"websocketClients"`
}

// GetVersion returns build information.
func (h *SystemHandler) GetVersion(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, version.Get())
}

// GetMetrics returns scoring latencies and counters.
func (h *SystemHandler) GetMetrics(w http.ResponseWriter, _ *http.Request) {
	var resp MetricsResponse
	if h.metrics != nil {
		resp.Scoring = h.metrics.Snapshot()
	}
	if h.client != nil {
		stats := h.client.GetStats()
		resp.Metadata = &stats
	}
	if h.clients != nil {
		resp.WebSocketClients = h.clients()
	}
	response.Success(w, resp)
}

func logWriteError(what string, err error) {
	log.Printf("[API] Failed to write %s: %v", what, err)
}
