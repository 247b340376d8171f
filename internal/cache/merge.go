package cache

import (
	"sort"

	"github.com/opub/mkrs.info/models"
)

// SelectBatch picks the mints to refetch this run. Mints with no cached
// record or a record missing a valid image are mandatory and never skipped.
// When the mandatory set is smaller than batchSize, the batch is padded with
// cached items ordered by oldest sync timestamp first, so every item cycles
// through a refresh at a bounded interval across runs.
func SelectBatch(items []models.NFT, hashList []string, batchSize int) []string {
	cached := make(map[string]models.NFT, len(items))
	for _, item := range items {
		cached[item.Mint] = item
	}

	var batch []string
	seen := make(map[string]bool, len(hashList))
	for _, mint := range hashList {
		if seen[mint] {
			continue
		}
		seen[mint] = true
		if item, ok := cached[mint]; !ok || item.Image == "" {
			batch = append(batch, mint)
		}
	}

	if len(batch) >= batchSize {
		return batch
	}

	// pad with least-recently-refreshed cached items
	stale := make([]models.NFT, 0, len(items))
	for _, item := range items {
		if item.Image != "" && seen[item.Mint] {
			stale = append(stale, item)
		}
	}
	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].Updated.Before(stale[j].Updated)
	})
	for _, item := range stale {
		if len(batch) >= batchSize {
			break
		}
		batch = append(batch, item.Mint)
	}
	return batch
}

// Merge folds freshly fetched records into the retained set keyed by mint.
// Items outside the batch are untouched and a failed refetch never evicts a
// previously successful record, so the cache is monotonically non-shrinking.
func Merge(items []models.NFT, fetched []models.NFT) []models.NFT {
	index := make(map[string]int, len(items))
	merged := make([]models.NFT, len(items))
	copy(merged, items)
	for i, item := range merged {
		index[item.Mint] = i
	}

	for _, nft := range fetched {
		if nft.Mint == "" || nft.Image == "" {
			continue // stale-data protection
		}
		if i, ok := index[nft.Mint]; ok {
			merged[i] = carryForward(merged[i], nft)
		} else {
			index[nft.Mint] = len(merged)
			merged = append(merged, nft)
		}
	}
	return merged
}

// carryForward overlays a fresh record on the cached one, keeping prior
// values for fields the fetch does not supply.
func carryForward(prev, next models.NFT) models.NFT {
	if next.Owner == "" {
		next.Owner = prev.Owner
	}
	if next.Rank == 0 {
		next.Rank = prev.Rank
	}
	if next.Owns == 0 {
		next.Owns = prev.Owns
	}
	return next
}
