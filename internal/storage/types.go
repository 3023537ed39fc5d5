package storage

import "github.com/ramonehamilton/nft-rarity/internal/storage/models"

// Aliases so callers of the storage service need not import models.
type (
	Collection    = models.Collection
	Ranking       = models.Ranking
	RankedItem    = models.RankedItem
	RankingFilter = models.RankingFilter
	TierCount     = models.TierCount
)
