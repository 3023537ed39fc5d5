package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ramonehamilton/nft-rarity/internal/api/handlers"
	"github.com/ramonehamilton/nft-rarity/internal/api/response"
	"github.com/ramonehamilton/nft-rarity/internal/version"
)

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ws", s.wsHub.ServeWs)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		scoreHandler := handlers.NewScoreHandler(s.ranking)
		r.Post("/score", scoreHandler.Score)

		collectionHandler := handlers.NewCollectionHandler(s.ranking)
		exportHandler := handlers.NewExportHandler(s.ranking)
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", collectionHandler.ListCollections)
			r.Post("/", collectionHandler.ImportCollection)
			r.Post("/fetch", collectionHandler.FetchCollection)

			r.Route("/{collectionID}", func(r chi.Router) {
				r.Get("/", collectionHandler.GetCollection)
				r.Delete("/", collectionHandler.DeleteCollection)
				r.Post("/rerank", collectionHandler.Rerank)
				r.Get("/rankings", collectionHandler.GetRankings)
				r.Get("/items/{tokenID}", collectionHandler.GetItem)
				r.Get("/items/{tokenID}/similar", collectionHandler.GetSimilar)
				r.Get("/traits", collectionHandler.GetTraits)
				r.Get("/traits/inspect", collectionHandler.InspectTrait)
				r.Get("/stats", collectionHandler.GetStats)
				r.Get("/export", exportHandler.ExportRankings)
				r.Get("/charts/tiers", exportHandler.TierChart)
				r.Get("/charts/scores", exportHandler.ScoreChart)
			})
		})

		systemHandler := handlers.NewSystemHandler(s.ranking.Metrics(), s.metadata, s.wsHub.ClientCount)
		r.Route("/system", func(r chi.Router) {
			r.Get("/version", systemHandler.GetVersion)
			r.Get("/metrics", systemHandler.GetMetrics)
		})
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]any{
		"status":           "ok",
		"version":          version.GetVersion(),
		"websocketClients": s.wsHub.ClientCount(),
	})
}
