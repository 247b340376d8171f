package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opub/mkrs.info/models"
)

func item(mint, image string, updated time.Time) models.NFT {
	return models.NFT{Mint: mint, Image: image, Updated: updated}
}

func TestSelectBatchMandatoryRefetches(t *testing.T) {
	now := time.Now()
	cached := []models.NFT{
		item("m1", "https://img/1.png", now),
		item("m2", "", now), // cached but missing image
	}
	hashList := []string{"m1", "m2", "m3"} // m3 never fetched

	batch := SelectBatch(cached, hashList, 2)
	assert.ElementsMatch(t, []string{"m2", "m3"}, batch, "missing and imageless items are never skipped")
}

func TestSelectBatchPadsWithOldestFirst(t *testing.T) {
	now := time.Now()
	cached := []models.NFT{
		item("m1", "https://img/1.png", now.Add(-3*time.Hour)),
		item("m2", "https://img/2.png", now.Add(-1*time.Hour)),
		item("m3", "https://img/3.png", now.Add(-2*time.Hour)),
	}
	hashList := []string{"m1", "m2", "m3", "m4"}

	batch := SelectBatch(cached, hashList, 3)
	require.Len(t, batch, 3)
	assert.Equal(t, "m4", batch[0], "mandatory refetch comes first")
	assert.Equal(t, []string{"m1", "m3"}, batch[1:], "padding cycles least-recently-refreshed items")
}

func TestSelectBatchMandatoryExceedsBatchSize(t *testing.T) {
	hashList := []string{"m1", "m2", "m3"}
	batch := SelectBatch(nil, hashList, 1)
	assert.Len(t, batch, 3, "mandatory refetches ignore the batch cap")
}

func TestMergeNeverShrinks(t *testing.T) {
	now := time.Now()
	cached := []models.NFT{
		item("m1", "https://img/1.png", now),
		item("m2", "https://img/2.png", now),
	}

	merged := Merge(cached, []models.NFT{item("m3", "https://img/3.png", now)})
	assert.GreaterOrEqual(t, len(merged), len(cached))
	assert.Len(t, merged, 3)
}

func TestMergeKeepsGoodRecordOverFailedRefetch(t *testing.T) {
	now := time.Now()
	good := item("m1", "https://img/1.png", now.Add(-time.Hour))
	good.Owner = "walletA"

	merged := Merge([]models.NFT{good}, []models.NFT{item("m1", "", now)})
	require.Len(t, merged, 1)
	assert.Equal(t, "https://img/1.png", merged[0].Image, "failed fetch must not regress the cache")
	assert.Equal(t, "walletA", merged[0].Owner)
}

func TestMergeCarriesForwardUnfetchedFields(t *testing.T) {
	now := time.Now()
	prev := item("m1", "https://img/old.png", now.Add(-time.Hour))
	prev.Owner = "walletA"
	prev.Rank = 42
	prev.Owns = 3

	fresh := item("m1", "https://img/new.png", now)

	merged := Merge([]models.NFT{prev}, []models.NFT{fresh})
	require.Len(t, merged, 1)
	assert.Equal(t, "https://img/new.png", merged[0].Image)
	assert.Equal(t, "walletA", merged[0].Owner, "owner survives a fetch that omitted it")
	assert.Equal(t, 42, merged[0].Rank)
	assert.Equal(t, 3, merged[0].Owns)
}

func TestMergeIgnoresRecordsWithoutMint(t *testing.T) {
	merged := Merge(nil, []models.NFT{{Image: "https://img/x.png"}})
	assert.Empty(t, merged)
}
