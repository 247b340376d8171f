package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/opub/mkrs.info/internal/api"
	"github.com/opub/mkrs.info/internal/cache"
	"github.com/opub/mkrs.info/internal/owners"
	"github.com/opub/mkrs.info/internal/siblings"
	"github.com/opub/mkrs.info/internal/traits"
	"github.com/opub/mkrs.info/internal/utils"
	"github.com/opub/mkrs.info/models"
)

// Config holds pipeline configuration
type Config struct {
	SnapshotPath    string          `yaml:"snapshotPath"`    // durable cache consumed by the display layer
	TraitsPath      string          `yaml:"traitsPath"`      // derived trait-frequency report
	HashListPath    string          `yaml:"hashListPath"`    // fixed collection membership list
	BatchSize       int             `yaml:"batchSize"`       // refetch batch size, 0 = 1/24th of the collection
	Wallets         []string        `yaml:"wallets"`         // holder addresses for wallet enumeration, empty = direct lookup only
	ResolveOwners   bool            `yaml:"resolveOwners"`   // fill missing owners over blockchain RPC
	RefreshInterval time.Duration   `yaml:"refreshInterval"` // re-run period in serve mode
	ShowProgress    bool            `yaml:"showProgress"`    // console progress bar during batch fetches
	Owners          owners.Config   `yaml:"owners"`
	Siblings        siblings.Config `yaml:"siblings"`
}

// DefaultConfig returns default pipeline configuration
func DefaultConfig() Config {
	return Config{
		SnapshotPath:    "data/mkrs.json",
		TraitsPath:      "data/traits.json",
		HashListPath:    "data/hash-list.json",
		RefreshInterval: time.Hour,
		ShowProgress:    true,
		Owners:          owners.DefaultConfig(),
		Siblings:        siblings.DefaultConfig(),
	}
}

// Result summarizes one completed run
type Result struct {
	RunID    string
	Items    int
	Fetched  int
	Failed   int
	Owners   owners.Summary
	Duration time.Duration
}

// Coordinator executes the synchronization pipeline as a strict sequence:
// load cache → select batch → fetch → merge → normalize → ranks → prices →
// ownership → siblings → write. One run owns the working set exclusively;
// nothing is written until every stage has completed, so an aborted run
// leaves the prior snapshot authoritative.
type Coordinator struct {
	config  Config
	fetcher *api.Fetcher
	logger  *zap.Logger
}

// New creates a new pipeline coordinator
func New(config Config, fetcher *api.Fetcher, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		config:  config,
		fetcher: fetcher,
		logger:  logger.Named("pipeline"),
	}
}

// Run executes one full synchronization pass
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()[:8]
	log := c.logger.With(zap.String("run", runID))

	items, err := cache.Load(c.config.SnapshotPath)
	if err != nil {
		return nil, errors.Wrap(err, "load snapshot")
	}
	hashList, err := cache.LoadHashList(c.config.HashListPath)
	if err != nil {
		return nil, errors.Wrap(err, "load hash list")
	}
	log.Info("starting run",
		zap.Int("cached", len(items)),
		zap.Int("collection", len(hashList)))

	batchSize := c.config.BatchSize
	if batchSize <= 0 {
		// 1/24th per run bounds the full refresh cycle at 24 runs
		batchSize = (len(hashList) + 23) / 24
	}
	batch := cache.SelectBatch(items, hashList, batchSize)
	log.Info("selected batch", zap.Int("size", len(batch)))

	fetched, failed := c.fetchBatch(ctx, log, batch)
	merged := cache.Merge(items, fetched)
	if len(merged) < len(items) {
		// Merge guarantees this never happens; guard the invariant anyway
		return nil, errors.Errorf("merge shrank cache: %d -> %d", len(items), len(merged))
	}

	schema := traits.Union(merged)
	traits.Normalize(merged, schema)
	log.Info("normalized attributes", zap.Int("columns", len(schema)))

	ranks := c.fetcher.GetRanks(ctx)
	for i := range merged {
		if rank, ok := ranks[merged[i].Mint]; ok {
			merged[i].Rank = rank
		}
	}

	prices := c.fetcher.GetPrices(ctx)
	summary := owners.Aggregate(merged, prices, c.config.Owners, log)

	siblings.Group(merged, schema, c.config.Siblings)

	if err := ctx.Err(); err != nil {
		return nil, err // aborted before write, prior snapshot stays authoritative
	}
	if err := cache.Write(c.config.SnapshotPath, merged); err != nil {
		return nil, errors.Wrap(err, "write snapshot")
	}
	if err := cache.WriteJSON(c.config.TraitsPath, traits.Frequencies(merged, schema)); err != nil {
		return nil, errors.Wrap(err, "write trait report")
	}

	result := &Result{
		RunID:    runID,
		Items:    len(merged),
		Fetched:  len(fetched),
		Failed:   failed,
		Owners:   summary,
		Duration: time.Since(started),
	}
	log.Info("run complete",
		zap.Int("items", result.Items),
		zap.Int("fetched", result.Fetched),
		zap.Int("failed", result.Failed),
		zap.String("elapsed", utils.Elapsed(result.Duration)))
	return result, nil
}

// fetchBatch acquires metadata for the selected mints: wallet enumeration
// first when holder addresses are configured, then direct lookup for the
// remainder. Per-item failures are logged and skipped; the cached record
// for a failed mint survives untouched.
func (c *Coordinator) fetchBatch(ctx context.Context, log *zap.Logger, batch []string) ([]models.NFT, int) {
	var fetched []models.NFT
	failed := 0
	have := make(map[string]bool, len(batch))

	for _, wallet := range c.config.Wallets {
		nfts, err := c.fetcher.LoadWallet(ctx, wallet)
		if err != nil {
			log.Warn("wallet enumeration incomplete",
				zap.String("wallet", wallet), zap.Error(err))
		}
		for _, nft := range nfts {
			if !have[nft.Mint] {
				have[nft.Mint] = true
				fetched = append(fetched, nft)
			}
		}
	}

	remaining := make([]string, 0, len(batch))
	for _, mint := range batch {
		if !have[mint] {
			remaining = append(remaining, mint)
		}
	}
	for i, mint := range remaining {
		if c.config.ShowProgress {
			utils.Progress(float64(i) / float64(len(remaining)))
		}
		nft, err := c.fetcher.LoadToken(ctx, mint)
		if err != nil {
			failed++
			log.Warn("token fetch failed", zap.String("mint", mint), zap.Error(err))
			continue
		}
		fetched = append(fetched, nft)
	}
	if c.config.ShowProgress && len(remaining) > 0 {
		utils.Clear()
	}

	if c.config.ResolveOwners {
		for i := range fetched {
			if fetched[i].Owner != "" {
				continue
			}
			owner, err := c.fetcher.GetOwner(ctx, fetched[i].Mint)
			if err != nil {
				log.Warn("owner lookup failed",
					zap.String("mint", fetched[i].Mint), zap.Error(err))
				continue
			}
			fetched[i].Owner = owner
		}
	}
	return fetched, failed
}
