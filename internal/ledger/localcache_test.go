package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estpark/parking-lot/internal/models"
)

func TestLocalCache_LoadMissingFile(t *testing.T) {
	cache := NewLocalCache(filepath.Join(t.TempDir(), "history.json"))

	records, err := cache.Load()
	assert.NoError(t, err)
	assert.Nil(t, records)
}

func TestLocalCache_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	cache := NewLocalCache(path)

	records := []models.HistoryRecord{
		{
			ID:           "abc",
			DateKey:      "2024-05-01",
			SpotID:       "12",
			Plate:        "AB 123 CD",
			VehicleClass: models.VehicleCar,
			StartTime:    time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
			EndTime:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
			DurationMs:   3600000,
			Amount:       "5000",
		},
	}
	require.NoError(t, cache.Save(records))

	loaded, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestLocalCache_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewLocalCache(path).Load()
	assert.Error(t, err)
}

func TestLocalCache_SaveReplacesList(t *testing.T) {
	cache := NewLocalCache(filepath.Join(t.TempDir(), "history.json"))

	require.NoError(t, cache.Save([]models.HistoryRecord{{ID: "one"}, {ID: "two"}}))
	require.NoError(t, cache.Save([]models.HistoryRecord{{ID: "two"}}))

	loaded, err := cache.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "two", loaded[0].ID)
}
