package traits

import (
	"github.com/opub/mkrs.info/models"
)

// Sentinel is the placeholder assigned to a trait column absent on an item.
// It participates in sibling-signature equality like any real value.
const Sentinel = "None"

// Union collects the trait-name union across the working set in first-seen
// order. The result is the immutable column schema for this run's
// normalization pass; it must be recomputed every run since the union can
// grow as fetched data evolves.
func Union(items []models.NFT) []string {
	var schema []string
	seen := make(map[string]bool)
	for _, item := range items {
		for _, name := range item.Attributes.Keys() {
			if !seen[name] {
				seen[name] = true
				schema = append(schema, name)
			}
		}
	}
	return schema
}

// Normalize rewrites every item's attributes to the full column schema,
// filling absent traits with the sentinel, and recomputes the derived
// trait count. After this pass column alignment holds across all items.
func Normalize(items []models.NFT, schema []string) {
	for i := range items {
		attrs := models.NewTraitMap()
		count := 0
		for _, name := range schema {
			value, ok := items[i].Attributes.Get(name)
			if !ok || value == "" {
				value = Sentinel
			}
			if value != Sentinel {
				count++
			}
			attrs.Set(name, value)
		}
		items[i].Attributes = attrs
		items[i].TraitCount = count
	}
}

// Frequencies builds the trait-frequency report: column → value →
// occurrence count over the normalized working set. External rarity tooling
// consumes this artifact.
func Frequencies(items []models.NFT, schema []string) map[string]map[string]int {
	freq := make(map[string]map[string]int, len(schema))
	for _, name := range schema {
		freq[name] = make(map[string]int)
	}
	for _, item := range items {
		for _, name := range schema {
			freq[name][item.Attributes.Value(name)]++
		}
	}
	return freq
}
