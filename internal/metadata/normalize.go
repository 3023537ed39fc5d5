package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
)

// Normalize converts raw token metadata into a rarity.Item.
//
// Values are stringified without case folding or trimming: integral numbers
// drop their fraction, other finite numbers use the shortest representation,
// booleans become "true"/"false". Null values and non-finite numbers are
// rejected with ErrInvalidMetadata.
func Normalize(tokenID string, raw RawMetadata) (rarity.Item, error) {
	if tokenID == "" {
		return rarity.Item{}, fmt.Errorf("%w: empty token id", ErrInvalidMetadata)
	}

	attrs := make([]rarity.Trait, 0, len(raw.Attributes))
	for i, attr := range raw.Attributes {
		if attr.TraitType == "" {
			return rarity.Item{}, fmt.Errorf("%w: token %s attribute %d has no trait_type", ErrInvalidMetadata, tokenID, i)
		}
		value, err := normalizeValue(attr.Value)
		if err != nil {
			return rarity.Item{}, fmt.Errorf("%w: token %s trait %q: %v", ErrInvalidMetadata, tokenID, attr.TraitType, err)
		}
		attrs = append(attrs, rarity.Trait{TraitType: attr.TraitType, Value: value})
	}

	return rarity.Item{
		TokenID:    tokenID,
		Name:       raw.Name,
		Image:      raw.Image,
		Attributes: attrs,
	}, nil
}

func normalizeValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		f, err := x.Float64()
		if err != nil {
			return "", fmt.Errorf("number %s out of range", x)
		}
		return formatFloat(f)
	case float64:
		return formatFloat(x)
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case nil:
		return "", fmt.Errorf("missing value")
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number")
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// Collection is a decoded, normalised collection document.
type Collection struct {
	Name  string
	Slug  string
	Items []rarity.Item
}

// DecodeCollection reads a collection document and normalises every item.
func DecodeCollection(r io.Reader) (*Collection, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw RawCollection
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode collection: %v", ErrInvalidMetadata, err)
	}

	items, err := NormalizeAll(raw.Items)
	if err != nil {
		return nil, err
	}

	return &Collection{Name: raw.Name, Slug: raw.Slug, Items: items}, nil
}

// NormalizeAll normalises a slice of raw items, stopping at the first error.
func NormalizeAll(raw []RawItem) ([]rarity.Item, error) {
	items := make([]rarity.Item, 0, len(raw))
	for _, ri := range raw {
		item, err := Normalize(string(ri.TokenID), ri.RawMetadata)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
