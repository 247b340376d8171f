package api

import (
	"go.uber.org/zap"

	"github.com/opub/mkrs.info/internal/client"
)

// Config holds metadata fetcher configuration
type Config struct {
	Collection       string   `yaml:"collection"`       // collection tag used to filter wallet holdings
	MagicEden        string   `yaml:"magicEden"`        // marketplace API base URL
	HowRare          string   `yaml:"howRare"`          // rarity rank API base URL
	RPCEndpoints     []string `yaml:"rpcEndpoints"`     // ranked blockchain RPC URLs for the owner fallback
	WalletPageSize   int      `yaml:"walletPageSize"`   // wallet enumeration page size (default: 500)
	ListingsPageSize int      `yaml:"listingsPageSize"` // price feed page size (default: 20)
}

// DefaultConfig returns default metadata fetcher configuration
func DefaultConfig() Config {
	return Config{
		Collection:       "mkrs",
		MagicEden:        "https://api-mainnet.magiceden.dev/v2",
		HowRare:          "https://api.howrare.is/v0.1",
		RPCEndpoints:     []string{"https://api.mainnet-beta.solana.com"},
		WalletPageSize:   500,
		ListingsPageSize: 20,
	}
}

// Fetcher obtains raw per-item metadata and the collection-wide rank and
// price feeds through the rate-limited request client.
type Fetcher struct {
	config Config
	client *client.Client
	rpc    *client.Client
	logger *zap.Logger
}

// New creates a new metadata fetcher. The rpc client carries the failover
// endpoint list; the primary client talks to the marketplace and rank APIs.
func New(config Config, clientConfig client.Config, logger *zap.Logger) *Fetcher {
	rpcConfig := clientConfig
	rpcConfig.Endpoints = config.RPCEndpoints
	return &Fetcher{
		config: config,
		client: client.New(clientConfig, logger),
		rpc:    client.New(rpcConfig, logger),
		logger: logger.Named("fetcher"),
	}
}
