package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/estpark/parking-lot/internal/models"
)

// LocalCache persists the history list as a single JSON blob on disk. It is
// the offline fallback of the ledger: the whole list is loaded and rewritten
// on every change, there is no schema versioning or migration.
type LocalCache struct {
	path string
}

// NewLocalCache creates a cache backed by the given file. The file is created
// on first save.
func NewLocalCache(path string) *LocalCache {
	return &LocalCache{path: path}
}

// Load reads the full record list. A missing file yields an empty list; a
// corrupt file is an error so callers can decide whether to start fresh.
func (c *LocalCache) Load() ([]models.HistoryRecord, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history cache: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []models.HistoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history cache: %w", err)
	}
	return records, nil
}

// Save replaces the full record list. The write goes through a temp file and
// rename so a crash mid-write cannot corrupt the cache.
func (c *LocalCache) Save(records []models.HistoryRecord) error {
	if records == nil {
		records = []models.HistoryRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode history cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "history-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write history cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace history cache: %w", err)
	}
	return nil
}
