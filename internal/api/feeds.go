package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/opub/mkrs.info/models"
)

// rankResponse is the nested rank feed envelope
type rankResponse struct {
	Result struct {
		Data struct {
			Items []struct {
				Mint string `json:"mint"`
				Rank int    `json:"rank"`
			} `json:"items"`
		} `json:"data"`
	} `json:"result"`
}

// listingRecord is one active listing from the price feed
type listingRecord struct {
	TokenMint string  `json:"tokenMint"`
	Price     float64 `json:"price"`
	Seller    string  `json:"seller"`
}

// GetRanks fetches the collection-wide rarity ranks. A missing or malformed
// feed yields an empty map rather than failing the run; items simply keep
// their prior rank.
func (f *Fetcher) GetRanks(ctx context.Context) map[string]int {
	ranks := make(map[string]int)
	url := fmt.Sprintf("%s/collections/%s", f.config.HowRare, f.config.Collection)
	body, err := f.client.Get(ctx, url)
	if err != nil {
		f.logger.Warn("rank feed unavailable", zap.String("url", url), zap.Error(err))
		return ranks
	}

	var resp rankResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		f.logger.Warn("rank feed malformed", zap.String("url", url), zap.Error(err))
		return ranks
	}
	for _, item := range resp.Result.Data.Items {
		ranks[item.Mint] = item.Rank
	}
	f.logger.Info("loaded ranks", zap.Int("count", len(ranks)))
	return ranks
}

// GetPrices pages through the collection's active listings and returns
// mint → listing. An unreachable feed yields an empty map; items keep their
// prior price rather than aborting the run.
func (f *Fetcher) GetPrices(ctx context.Context) map[string]models.Listing {
	prices := make(map[string]models.Listing)
	limit := f.config.ListingsPageSize

	for offset := 0; ; offset += limit {
		url := fmt.Sprintf("%s/collections/%s/listings?offset=%d&limit=%d",
			f.config.MagicEden, f.config.Collection, offset, limit)
		body, err := f.client.Get(ctx, url)
		if err != nil {
			f.logger.Warn("price feed unavailable", zap.String("url", url), zap.Error(err))
			return prices
		}

		var page []listingRecord
		if err := json.Unmarshal(body, &page); err != nil {
			f.logger.Warn("price feed malformed",
				zap.String("url", url), zap.Error(errors.Wrap(err, "decode listings")))
			return prices
		}
		for _, listing := range page {
			prices[listing.TokenMint] = models.Listing{Price: listing.Price, Seller: listing.Seller}
		}
		if len(page) < limit {
			f.logger.Info("loaded prices", zap.Int("count", len(prices)))
			return prices
		}
	}
}
