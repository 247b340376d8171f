package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/opub/mkrs.info/models"
)

// ErrBadRecord marks a fetched record that failed to produce an image URI.
// Such records must never overwrite a previously cached good record.
var ErrBadRecord = errors.New("incomplete metadata record")

// tokenRecord is the raw token shape returned by the marketplace API
type tokenRecord struct {
	MintAddress string           `json:"mintAddress"`
	Name        string           `json:"name"`
	Image       string           `json:"image"`
	Owner       string           `json:"owner"`
	Collection  string           `json:"collection"`
	Price       float64          `json:"price"`
	Attributes  []tokenAttribute `json:"attributes"`
}

type tokenAttribute struct {
	TraitType string            `json:"trait_type"`
	Value     models.TraitValue `json:"value"`
}

// LoadWallet pages through a wallet's current holdings and returns the
// tokens belonging to the target collection. A page shorter than the
// requested limit signals end-of-results.
func (f *Fetcher) LoadWallet(ctx context.Context, wallet string) ([]models.NFT, error) {
	var nfts []models.NFT
	limit := f.config.WalletPageSize
	now := time.Now().UTC()

	for offset := 0; ; offset += limit {
		url := fmt.Sprintf("%s/wallets/%s/tokens?listStatus=both&offset=%d&limit=%d",
			f.config.MagicEden, wallet, offset, limit)
		body, err := f.client.Get(ctx, url)
		if err != nil {
			return nfts, errors.Wrap(err, "load wallet")
		}

		var page []tokenRecord
		if err := json.Unmarshal(body, &page); err != nil {
			return nfts, errors.Wrap(err, "decode wallet page")
		}
		for _, record := range page {
			if record.Collection != f.config.Collection {
				continue
			}
			nft, err := f.normalize(record, now)
			if err != nil {
				f.logger.Warn("skipping bad wallet record",
					zap.String("mint", record.MintAddress), zap.Error(err))
				continue
			}
			nfts = append(nfts, nft)
		}
		if len(page) < limit {
			return nfts, nil
		}
	}
}

// LoadToken fetches a single item's metadata by mint
func (f *Fetcher) LoadToken(ctx context.Context, mint string) (models.NFT, error) {
	url := fmt.Sprintf("%s/tokens/%s", f.config.MagicEden, mint)
	body, err := f.client.Get(ctx, url)
	if err != nil {
		return models.NFT{}, errors.Wrap(err, "load token")
	}

	var record tokenRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return models.NFT{}, errors.Wrap(err, "decode token")
	}
	if record.MintAddress == "" {
		record.MintAddress = mint
	}
	return f.normalize(record, time.Now().UTC())
}

// normalize converts a raw token record to the common snapshot shape
func (f *Fetcher) normalize(record tokenRecord, now time.Time) (models.NFT, error) {
	if record.Image == "" {
		return models.NFT{}, errors.Wrap(ErrBadRecord, record.MintAddress)
	}
	attrs := models.NewTraitMap()
	for _, attr := range record.Attributes {
		attrs.Set(attr.TraitType, string(attr.Value))
	}
	return models.NFT{
		Mint:       record.MintAddress,
		Name:       record.Name,
		Image:      record.Image,
		Details:    fmt.Sprintf("https://magiceden.io/item-details/%s", record.MintAddress),
		Owner:      record.Owner,
		Price:      record.Price,
		Updated:    now,
		Attributes: attrs,
	}, nil
}
