package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opub/mkrs.info/internal/api"
	"github.com/opub/mkrs.info/internal/cache"
	"github.com/opub/mkrs.info/internal/client"
	"github.com/opub/mkrs.info/models"
)

// collectionServer fakes the marketplace, rank and price services for a
// three item collection where m1 and m2 share a single cosmetic trait.
func collectionServer(t *testing.T) *httptest.Server {
	t.Helper()
	dna := map[string]string{"m1": "A", "m2": "A", "m3": "B"}

	mux := http.NewServeMux()
	mux.HandleFunc("/tokens/", func(w http.ResponseWriter, r *http.Request) {
		mint := strings.TrimPrefix(r.URL.Path, "/tokens/")
		value, ok := dna[mint]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"mintAddress": mint,
			"name":        "MKRS " + mint,
			"image":       "https://img/" + mint + ".png",
			"owner":       "wallet-" + mint,
			"collection":  "mkrs",
			"attributes": []map[string]interface{}{
				{"trait_type": "DNA", "value": value},
			},
		})
	})
	mux.HandleFunc("/collections/mkrs/listings", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"tokenMint":"m1","price":2.5,"seller":"walletS"}]`)
	})
	mux.HandleFunc("/collections/mkrs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"data":{"items":[{"mint":"m1","rank":1},{"mint":"m2","rank":2},{"mint":"m3","rank":3}]}}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testCoordinator(t *testing.T, srv *httptest.Server, dir string) *Coordinator {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hash-list.json"),
		[]byte(`["m1","m2","m3"]`), 0o644))

	apiCfg := api.DefaultConfig()
	apiCfg.MagicEden = srv.URL
	apiCfg.HowRare = srv.URL

	clientCfg := client.DefaultConfig()
	clientCfg.RequestsPerSecond = 100000
	clientCfg.Backoff = 0

	cfg := DefaultConfig()
	cfg.SnapshotPath = filepath.Join(dir, "mkrs.json")
	cfg.TraitsPath = filepath.Join(dir, "traits.json")
	cfg.HashListPath = filepath.Join(dir, "hash-list.json")
	cfg.BatchSize = 3
	cfg.ShowProgress = false

	fetcher := api.New(apiCfg, clientCfg, zap.NewNop())
	return New(cfg, fetcher, zap.NewNop())
}

func TestRunBuildsSnapshotFromEmptyCache(t *testing.T) {
	dir := t.TempDir()
	c := testCoordinator(t, collectionServer(t), dir)

	result, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Items)
	assert.Equal(t, 3, result.Fetched)
	assert.Zero(t, result.Failed)

	items, err := cache.Load(filepath.Join(dir, "mkrs.json"))
	require.NoError(t, err)
	require.Len(t, items, 3)

	byMint := make(map[string]models.NFT)
	for _, item := range items {
		byMint[item.Mint] = item
	}

	// m1 and m2 share trait A and are mutual siblings; m3 stands alone
	assert.Equal(t, []string{"m2"}, byMint["m1"].Siblings)
	assert.Equal(t, []string{"m1"}, byMint["m2"].Siblings)
	assert.Empty(t, byMint["m3"].Siblings)
	assert.Equal(t, "twin", byMint["m1"].Twins)

	// ranks applied and snapshot ordered by rank
	assert.Equal(t, "m1", items[0].Mint)
	assert.Equal(t, 3, items[2].Rank)

	// the listed item carries its price and tag
	assert.Equal(t, 2.5, byMint["m1"].Price)
	assert.Equal(t, "listed", byMint["m1"].OwnerAlt)

	// every item carries the full column set
	for _, item := range items {
		assert.Equal(t, []string{"DNA"}, item.Attributes.Keys())
	}

	// derived trait report exists
	_, err = os.Stat(filepath.Join(dir, "traits.json"))
	require.NoError(t, err)
}

func TestRunIsStableWhenUpstreamUnchanged(t *testing.T) {
	dir := t.TempDir()
	srv := collectionServer(t)
	c := testCoordinator(t, srv, dir)

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	first, err := cache.Load(filepath.Join(dir, "mkrs.json"))
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	require.NoError(t, err)
	second, err := cache.Load(filepath.Join(dir, "mkrs.json"))
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Mint, second[i].Mint)
		assert.Equal(t, first[i].Rank, second[i].Rank)
		assert.Equal(t, first[i].Owner, second[i].Owner)
		assert.Equal(t, first[i].Owns, second[i].Owns)
		assert.Equal(t, first[i].Price, second[i].Price)
		assert.Equal(t, first[i].Siblings, second[i].Siblings)
		assert.Equal(t, first[i].TraitCount, second[i].TraitCount)
		// only the sync timestamp may move between unchanged runs
	}
}

func TestRunPreservesCacheWhenFetchFails(t *testing.T) {
	dir := t.TempDir()
	srv := collectionServer(t)
	c := testCoordinator(t, srv, dir)

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	// upstream goes away entirely; the next run must not lose records
	srv.Close()
	result, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Items, "cache never shrinks on failed refetches")

	items, err := cache.Load(filepath.Join(dir, "mkrs.json"))
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.NotEmpty(t, item.Image, "prior good records survive")
	}
}

func TestRunFailsOnMissingHashList(t *testing.T) {
	dir := t.TempDir()
	srv := collectionServer(t)
	c := testCoordinator(t, srv, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "hash-list.json")))

	_, err := c.Run(context.Background())
	require.Error(t, err)
}
