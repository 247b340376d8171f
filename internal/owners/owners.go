package owners

import (
	"github.com/axiomhq/hyperloglog"
	"go.uber.org/zap"

	"github.com/opub/mkrs.info/models"
)

// ownership annotation tags
const (
	TagTreasury = "treasury"
	TagExchange = "exchange"
	TagListed   = "listed"
)

// Config holds ownership aggregation configuration. The special addresses
// and the tag precedence evolved across pipeline generations, so both are
// configuration rather than hard-coded.
type Config struct {
	Treasury   string   `yaml:"treasury"`   // collection treasury wallet
	Exchange   string   `yaml:"exchange"`   // internal exchange wallet
	Escrow     string   `yaml:"escrow"`     // marketplace escrow, never reported as the human owner
	Precedence []string `yaml:"precedence"` // tag order, first match wins
}

// DefaultConfig returns default ownership configuration for the collection
func DefaultConfig() Config {
	return Config{
		Treasury:   "6Kxyza4XQ63aiEnpzJy9h7eqzdPqsZZinRFk1NPiExek",
		Exchange:   "FoeRYSmfasEUfdf1FfYg5f4PsQVtsCeKGhrNkCZu4sRu",
		Escrow:     "1BWutmTvYPwDtmw9abTkS4Ssr8no61spGAvW1X6NDix",
		Precedence: []string{TagTreasury, TagExchange, TagListed},
	}
}

// Summary reports aggregate ownership figures for one run
type Summary struct {
	Distinct  int    // exact count of distinct resolved owners
	Estimated uint64 // hyperloglog estimate, sanity check for the exact count
	Unowned   int    // items with no resolvable owner this run
}

// Aggregate resolves each item's effective owner, applies the listing feed,
// tags special wallets and recounts per-owner holdings. Items whose owner
// cannot be resolved this run keep their prior owner and owns values; a
// transient fetch gap must never null out previously known data.
func Aggregate(items []models.NFT, prices map[string]models.Listing, config Config, logger *zap.Logger) Summary {
	log := logger.Named("owners")

	held := make(map[string]int, len(items))
	sketch := hyperloglog.New14()
	unowned := 0

	// an empty feed means the price service was unreachable; keep prior
	// prices in that case rather than delisting the whole collection
	feedLive := len(prices) > 0

	for i := range items {
		item := &items[i]

		listing, listed := prices[item.Mint]
		if listed {
			item.Price = listing.Price
		} else if feedLive {
			item.Price = 0
		}

		// escrow holds listed items; report the seller instead
		if item.Owner == config.Escrow {
			item.Owner = listing.Seller
		}
		if item.Owner == "" && listing.Seller != "" {
			item.Owner = listing.Seller
		}

		item.OwnerAlt = classify(item, config)

		if item.Owner == "" {
			unowned++
			continue
		}
		held[item.Owner]++
		sketch.Insert([]byte(item.Owner))
	}

	for i := range items {
		if count, ok := held[items[i].Owner]; ok {
			items[i].Owns = count
		}
		// unresolved owners keep the prior owns value
	}

	summary := Summary{
		Distinct:  len(held),
		Estimated: sketch.Estimate(),
		Unowned:   unowned,
	}
	log.Info("aggregated ownership",
		zap.Int("owners", summary.Distinct),
		zap.Uint64("estimated", summary.Estimated),
		zap.Int("unowned", summary.Unowned))
	return summary
}

// classify picks the ownership tag by configured precedence; treasury and
// exchange outrank listed when both could apply.
func classify(item *models.NFT, config Config) string {
	for _, tag := range config.Precedence {
		switch tag {
		case TagTreasury:
			if item.Owner == config.Treasury {
				return TagTreasury
			}
		case TagExchange:
			if item.Owner == config.Exchange {
				return TagExchange
			}
		case TagListed:
			if item.Price > 0 {
				return TagListed
			}
		}
	}
	return ""
}
