package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ramonehamilton/nft-rarity/internal/api/response"
	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/ranking"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rarity.ErrInvalidItem),
		errors.Is(err, ranking.ErrInvalidRequest),
		errors.Is(err, metadata.ErrInvalidMetadata):
		return http.StatusBadRequest
	case errors.Is(err, ranking.ErrNoFetcher):
		return http.StatusNotImplemented
	case errors.Is(err, ranking.ErrIncompleteFetch):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		response.InternalError(w, err)
		return
	}
	response.Error(w, status, err)
}
