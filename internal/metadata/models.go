// Package metadata fetches and normalises off-chain NFT metadata into items
// the rarity engine can score.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMetadata is returned when metadata cannot be turned into an item.
var ErrInvalidMetadata = errors.New("invalid metadata")

// Error types reported by the client.
const (
	ErrRateLimited   = "rate_limited"
	ErrUnavailable   = "unavailable"
	ErrNotFound      = "not_found"
	ErrInvalidParams = "invalid_params"
	ErrParseError    = "parse_error"
)

// APIError represents a failed metadata request.
type APIError struct {
	Type       string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// RawAttribute is an attribute as found in token metadata JSON. Values are
// frequently numbers or booleans rather than strings.
type RawAttribute struct {
	TraitType   string `json:"trait_type"`
	Value       any    `json:"value"`
	DisplayType string `json:"display_type,omitempty"`
}

// RawMetadata is the subset of the ERC-721 metadata document we consume.
type RawMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Image       string         `json:"image"`
	Attributes  []RawAttribute `json:"attributes"`
}

// TokenID accepts either a JSON string or a JSON number.
type TokenID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *TokenID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TokenID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("token id must be a string or number: %w", err)
	}
	*id = TokenID(n.String())
	return nil
}

// RawItem is one entry of a collection document.
type RawItem struct {
	TokenID TokenID `json:"tokenId"`
	RawMetadata
}

// RawCollection is the on-disk / over-the-wire collection document.
type RawCollection struct {
	Name  string    `json:"name"`
	Slug  string    `json:"slug"`
	Items []RawItem `json:"items"`
}

// ClientStats tracks metadata client activity.
type ClientStats struct {
	TotalRequests  uint64 `json:"totalRequests"`
	FailedRequests uint64 `json:"failedRequests"`
	Retries        uint64 `json:"retries"`
}

// FetchError records a token that could not be fetched.
type FetchError struct {
	TokenID string `json:"tokenId"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

func (e FetchError) Error() string {
	return fmt.Sprintf("token %s: %v", e.TokenID, e.Err)
}
