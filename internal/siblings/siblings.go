package siblings

import (
	"golang.org/x/crypto/blake2b"

	"github.com/opub/mkrs.info/models"
)

// Config holds sibling detection configuration. The cosmetic-trait subset
// shifted between pipeline generations, so exclusions are configuration;
// the derived trait count is always excluded.
type Config struct {
	ExcludeTraits []string `yaml:"excludeTraits"` // columns left out of the signature
}

// DefaultConfig returns default sibling detection configuration
func DefaultConfig() Config {
	return Config{}
}

// Group computes each item's cosmetic-trait signature and fills in the
// sibling lists and group-size labels. Must run after normalization so
// sentinel-filled absent traits participate in signature equality. Each
// item's sibling list excludes the item itself; singletons get an empty
// list and an empty label.
func Group(items []models.NFT, schema []string, config Config) {
	excluded := make(map[string]bool, len(config.ExcludeTraits))
	for _, name := range config.ExcludeTraits {
		excluded[name] = true
	}

	groups := make(map[[blake2b.Size256]byte][]string)
	keys := make([][blake2b.Size256]byte, len(items))
	for i := range items {
		key := signature(&items[i], schema, excluded)
		keys[i] = key
		groups[key] = append(groups[key], items[i].Mint)
	}

	for i := range items {
		group := groups[keys[i]]
		siblings := make([]string, 0, len(group)-1)
		for _, mint := range group {
			if mint != items[i].Mint {
				siblings = append(siblings, mint)
			}
		}
		items[i].Siblings = siblings
		items[i].Twins = label(len(group))
	}
}

// signature hashes the ordered cosmetic trait values. Name and value are
// length-prefixed by the separator scheme below so distinct column splits
// cannot collide.
func signature(item *models.NFT, schema []string, excluded map[string]bool) [blake2b.Size256]byte {
	hash, _ := blake2b.New256(nil)
	for _, name := range schema {
		if excluded[name] {
			continue
		}
		hash.Write([]byte(name))
		hash.Write([]byte{0})
		hash.Write([]byte(item.Attributes.Value(name)))
		hash.Write([]byte{0xff})
	}
	var key [blake2b.Size256]byte
	copy(key[:], hash.Sum(nil))
	return key
}

// label names a sibling group by size, matching the display pages
func label(size int) string {
	switch size {
	case 5:
		return "quintuplet"
	case 4:
		return "quadruplet"
	case 3:
		return "triplet"
	case 2:
		return "twin"
	default:
		return ""
	}
}
