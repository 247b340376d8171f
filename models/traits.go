package models

// TraitMap is an ordered mapping of trait column name to trait value.
// Insertion order is preserved so serialized output keeps a stable column
// layout from run to run instead of the random ordering of a plain map.
type TraitMap struct {
	keys   []string
	values map[string]string
}

// NewTraitMap creates an empty trait map
func NewTraitMap() *TraitMap {
	return &TraitMap{values: make(map[string]string)}
}

// Set stores a trait value, appending the key on first insertion
func (t *TraitMap) Set(key, value string) {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Get returns the value for a trait column and whether it is present
func (t *TraitMap) Get(key string) (string, bool) {
	if t == nil || t.values == nil {
		return "", false
	}
	v, ok := t.values[key]
	return v, ok
}

// Value returns the value for a trait column, empty when absent
func (t *TraitMap) Value(key string) string {
	v, _ := t.Get(key)
	return v
}

// Keys returns the trait column names in insertion order
func (t *TraitMap) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return keys
}

// Len returns the number of trait columns
func (t *TraitMap) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}
