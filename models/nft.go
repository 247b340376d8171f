package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// NFT represents one collectible in the collection. Trait columns are
// flattened to top-level JSON keys alongside the fixed fields, so the
// display tables can treat every column uniformly. The fixed keys below are
// reserved; everything else on the wire is a trait column.
type NFT struct {
	Mint       string    // unique token identifier
	Name       string    // display name
	Image      string    // image URI, empty means the fetch failed
	Details    string    // marketplace detail page link
	Rank       int       // external rarity rank, 0 until ranks load
	Owner      string    // resolved owner address
	OwnerAlt   string    // ownership annotation: treasury, exchange or listed
	Owns       int       // items held by the same owner
	Price      float64   // current listing price, 0 means unlisted
	Updated    time.Time // last successful metadata sync
	TraitCount int       // count of non-sentinel trait columns
	Twins      string    // sibling group label: twin, triplet, quadruplet, quintuplet
	Siblings   []string  // mints sharing this item's trait signature
	Attributes *TraitMap // normalized trait columns
}

// rawAttribute is the attribute shape returned by the metadata service
// before normalization flattens it into columns.
type rawAttribute struct {
	TraitType string     `json:"trait_type"`
	Value     TraitValue `json:"value"`
}

// TraitValue decodes a trait value that may arrive as a string, number or
// bool and holds it as its display string.
type TraitValue string

// UnmarshalJSON implements json.Unmarshaler
func (v *TraitValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TraitValue(s)
		return nil
	}
	// numbers, bools and null keep their literal text
	text := string(bytes.TrimSpace(data))
	if text == "null" {
		text = ""
	}
	*v = TraitValue(text)
	return nil
}

// fixed JSON keys reserved by the snapshot contract
const (
	keyMint     = "mint"
	keyName     = "name"
	keyImage    = "image"
	keyDetails  = "details"
	keyRank     = "rank"
	keyOwner    = "owner"
	keyOwnerAlt = "ownerAlt"
	keyOwns     = "owns"
	keyPrice    = "price"
	keyUpdated  = "updated"
	keyTraits   = "Traits"
	keyTwins    = "Twins"
	keySiblings = "siblings"
	keyAttrs    = "attributes"
)

// MarshalJSON writes the fixed fields followed by the trait columns in
// schema order. Rank, ownerAlt and price are omitted when unset, matching
// what the display pages expect for unranked, untagged and unlisted items.
func (n NFT) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	write := func(key string, value interface{}) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := write(keyMint, n.Mint); err != nil {
		return nil, err
	}
	if err := write(keyName, n.Name); err != nil {
		return nil, err
	}
	if err := write(keyImage, n.Image); err != nil {
		return nil, err
	}
	if err := write(keyDetails, n.Details); err != nil {
		return nil, err
	}
	if n.Rank > 0 {
		if err := write(keyRank, n.Rank); err != nil {
			return nil, err
		}
	}
	if err := write(keyOwner, n.Owner); err != nil {
		return nil, err
	}
	if n.OwnerAlt != "" {
		if err := write(keyOwnerAlt, n.OwnerAlt); err != nil {
			return nil, err
		}
	}
	if err := write(keyOwns, n.Owns); err != nil {
		return nil, err
	}
	if n.Price > 0 {
		if err := write(keyPrice, n.Price); err != nil {
			return nil, err
		}
	}
	if err := write(keyUpdated, n.Updated); err != nil {
		return nil, err
	}
	if err := write(keyTraits, n.TraitCount); err != nil {
		return nil, err
	}
	if err := write(keyTwins, n.Twins); err != nil {
		return nil, err
	}
	siblings := n.Siblings
	if siblings == nil {
		siblings = []string{}
	}
	if err := write(keySiblings, siblings); err != nil {
		return nil, err
	}

	if n.Attributes != nil {
		for _, key := range n.Attributes.Keys() {
			if reservedKey(key) {
				continue
			}
			if err := write(key, n.Attributes.Value(key)); err != nil {
				return nil, err
			}
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON walks the object tokens in document order so trait column
// ordering survives a reload of the snapshot. Unknown keys become trait
// columns. A legacy "attributes" key is accepted in both its raw list form
// and its flattened object form.
func (n *NFT) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("nft: expected JSON object")
	}

	n.Attributes = NewTraitMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.Errorf("nft: unexpected key token %v", keyTok)
		}

		switch key {
		case keyMint:
			err = dec.Decode(&n.Mint)
		case keyName:
			err = dec.Decode(&n.Name)
		case keyImage:
			err = dec.Decode(&n.Image)
		case keyDetails:
			err = dec.Decode(&n.Details)
		case keyRank:
			err = dec.Decode(&n.Rank)
		case keyOwner:
			err = dec.Decode(&n.Owner)
		case keyOwnerAlt:
			err = dec.Decode(&n.OwnerAlt)
		case keyOwns:
			err = dec.Decode(&n.Owns)
		case keyPrice:
			err = dec.Decode(&n.Price)
		case keyUpdated:
			err = dec.Decode(&n.Updated)
		case keyTraits:
			err = dec.Decode(&n.TraitCount)
		case keyTwins:
			err = dec.Decode(&n.Twins)
		case keySiblings:
			err = dec.Decode(&n.Siblings)
		case keyAttrs:
			var raw json.RawMessage
			if err = dec.Decode(&raw); err == nil {
				err = n.decodeAttributes(raw)
			}
		default:
			var value interface{}
			if err = dec.Decode(&value); err == nil {
				n.Attributes.Set(key, traitString(value))
			}
		}
		if err != nil {
			return errors.Wrapf(err, "nft: decode %q", key)
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// decodeAttributes accepts the raw metadata list [{trait_type, value}] or a
// previously flattened {name: value} object.
func (n *NFT) decodeAttributes(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '[' {
		var attrs []rawAttribute
		if err := json.Unmarshal(trimmed, &attrs); err != nil {
			return err
		}
		for _, attr := range attrs {
			n.Attributes.Set(attr.TraitType, string(attr.Value))
		}
		return nil
	}

	// flattened object form: preserve document order
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.Errorf("nft: unexpected attribute key %v", keyTok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if key == keyTraits {
			continue // derived count, recomputed every run
		}
		n.Attributes.Set(key, traitString(value))
	}
	return nil
}

func traitString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

func reservedKey(key string) bool {
	switch key {
	case keyMint, keyName, keyImage, keyDetails, keyRank, keyOwner,
		keyOwnerAlt, keyOwns, keyPrice, keyUpdated, keyTraits, keyTwins,
		keySiblings, keyAttrs:
		return true
	}
	return false
}

// Listing is one active marketplace listing from the price feed.
type Listing struct {
	Price  float64 `json:"price"`
	Seller string  `json:"seller"`
}
