package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/opub/mkrs.info/models"
)

// Load reads the prior snapshot. A missing file yields an empty snapshot; a
// file that exists but cannot be parsed is fatal, since treating it as empty
// would amplify the loss by triggering a full refetch over bad state.
func Load(path string) ([]models.NFT, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read snapshot")
	}

	var items []models.NFT
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrapf(err, "corrupt snapshot %s", path)
	}
	return items, nil
}

// Write serializes the collection to the snapshot path, ordered by rank
// ascending with unranked items last. The document is written to a temp
// file in the same directory and renamed into place so a partial write can
// never leave a truncated snapshot behind.
func Write(path string, items []models.NFT) error {
	sorted := make([]models.NFT, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Rank, sorted[j].Rank
		if a > 0 && b > 0 {
			return a < b
		}
		return a > 0 && b <= 0
	})

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	return writeAtomic(path, data)
}

// WriteJSON persists any derived artifact (e.g. the trait frequency report)
// with the same atomic discipline as the snapshot.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal artifact")
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create snapshot dir")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "rename snapshot")
}

// LoadHashList reads the fixed collection membership list
func LoadHashList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read hash list")
	}
	var mints []string
	if err := json.Unmarshal(data, &mints); err != nil {
		return nil, errors.Wrapf(err, "corrupt hash list %s", path)
	}
	return mints, nil
}
