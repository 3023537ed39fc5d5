package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/nft-rarity/internal/api/response"
	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/ranking"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
)

// CollectionHandler handles collection, ranking and trait requests.
type CollectionHandler struct {
	svc RankingService
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(svc RankingService) *CollectionHandler {
	return &CollectionHandler{svc: svc}
}

// fetchBody is the body of POST /collections/fetch. Either TokenIDs or an
// inclusive From/To range must be given.
type fetchBody struct {
	ranking.FetchRequest
	From *int `json:"from,omitempty"`
	To   *int `json:"to,omitempty"`
}

// ListCollections returns every stored collection.
func (h *CollectionHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.svc.Collections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, collections)
}

// ImportCollection stores and ranks a posted collection document.
func (h *CollectionHandler) ImportCollection(w http.ResponseWriter, r *http.Request) {
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

	c, err := h.svc.Import(r.Context(), ranking.ImportRequest{
		Name:   doc.Name,
		Slug:   doc.Slug,
		Source: "api",
		Items:  items,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, c)
}

// FetchCollection fetches token metadata remotely and imports it.
func (h *CollectionHandler) FetchCollection(w http.ResponseWriter, r *http.Request) {
	var body fetchBody
	if err := response.Decode(r, &body); err != nil {
		response.BadRequest(w, err)
		return
	}

	req := body.FetchRequest
	if len(req.TokenIDs) == 0 && body.From != nil && body.To != nil {
		ids, err := metadata.TokenRange(*body.From, *body.To)
		if err != nil {
			response.BadRequest(w, err)
			return
		}
		req.TokenIDs = ids
	}

	result, err := h.svc.Fetch(r.Context(), req)
	if err != nil {
		if result != nil && errors.Is(err, ranking.ErrIncompleteFetch) {
			response.JSON(w, statusFor(err), map[string]any{
				"error":   http.StatusText(http.StatusBadGateway),
				"message": err.Error(),
				"code":    http.StatusBadGateway,
				"data":    result,
			})
			return
		}
		writeError(w, err)
		return
	}
	response.Created(w, result)
}

// GetCollection returns one collection.
func (h *CollectionHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Collection(r.Context(), chi.URLParam(r, "collectionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, c)
}

// DeleteCollection removes a collection and its rankings.
func (h *CollectionHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "collectionID")); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// Rerank rebuilds a collection's ranking snapshot.
func (h *CollectionHandler) Rerank(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Rerank(r.Context(), chi.URLParam(r, "collectionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, c)
}

// GetRankings returns a page of the ranking, optionally filtered by tier.
func (h *CollectionHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter ranking.RankingFilter
	if v := q.Get("tier"); v != "" {
		tier, ok := rarity.ParseTier(v)
		if !ok {
			response.BadRequest(w, fmt.Errorf("unknown tier %q", v))
			return
		}
		filter.Tier = tier
	}

	var err error
	if filter.Page, err = intParam(q.Get("page"), 1); err != nil {
		response.BadRequest(w, fmt.Errorf("page: %w", err))
		return
	}
	if filter.PageSize, err = intParam(q.Get("page_size"), ranking.DefaultPageSize); err != nil {
		response.BadRequest(w, fmt.Errorf("page_size: %w", err))
		return
	}

	page, err := h.svc.Rankings(r.Context(), chi.URLParam(r, "collectionID"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Paginated(w, page.Items, page.Page, page.PageSize, page.Total)
}

// GetItem returns a ranked item with the rarity of each of its traits.
func (h *CollectionHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Item(r.Context(), chi.URLParam(r, "collectionID"), chi.URLParam(r, "tokenID"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, detail)
}

// GetSimilar returns the items sharing the most traits with an item.
func (h *CollectionHandler) GetSimilar(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), ranking.DefaultSimilarLimit)
	if err != nil {
		response.BadRequest(w, fmt.Errorf("limit: %w", err))
		return
	}

	similar, err := h.svc.Similar(r.Context(), chi.URLParam(r, "collectionID"), chi.URLParam(r, "tokenID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, similar)
}

// GetTraits returns the rarity table of every trait in the collection.
func (h *CollectionHandler) GetTraits(w http.ResponseWriter, r *http.Request) {
	table, err := h.svc.TraitTable(r.Context(), chi.URLParam(r, "collectionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, table)
}

// InspectTrait reports the frequency statistics of one trait.
func (h *CollectionHandler) InspectTrait(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t := rarity.Trait{TraitType: q.Get("trait_type"), Value: q.Get("value")}

	tr, err := h.svc.InspectTrait(r.Context(), chi.URLParam(r, "collectionID"), t)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, tr)
}

// GetStats summarises a collection.
func (h *CollectionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), chi.URLParam(r, "collectionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, stats)
}

// intParam parses a positive integer query parameter, returning def when
// the parameter is absent.
func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
