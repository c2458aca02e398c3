package registry

import (
	"fmt"
	"strconv"

	"github.com/estpark/parking-lot/internal/models"
)

const (
	motorcycleSpots = 5
	regularSpots    = 50
)

// Registry holds the in-memory occupancy state of the fixed spot inventory:
// motorcycle spots M1-M5 and regular spots 1-50. Spots are never created or
// destroyed at runtime. A spot with no record is free.
type Registry struct {
	records map[string]*models.OccupancyRecord
	order   []string
}

// Entry pairs a spot id with its current record; Record is nil for free spots.
type Entry struct {
	SpotID string                  `json:"spot_id"`
	Record *models.OccupancyRecord `json:"record,omitempty"`
}

// New creates a registry with every spot in the inventory free.
func New() *Registry {
	r := &Registry{records: make(map[string]*models.OccupancyRecord)}
	for i := 1; i <= motorcycleSpots; i++ {
		r.order = append(r.order, fmt.Sprintf("M%d", i))
	}
	for i := 1; i <= regularSpots; i++ {
		r.order = append(r.order, strconv.Itoa(i))
	}
	return r
}

// Contains reports whether the spot id belongs to the inventory.
func (r *Registry) Contains(spotID string) bool {
	for _, id := range r.order {
		if id == spotID {
			return true
		}
	}
	return false
}

// Get returns the record for a spot, or nil when the spot is free.
func (r *Registry) Get(spotID string) (*models.OccupancyRecord, error) {
	if !r.Contains(spotID) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidSpot, spotID)
	}
	return r.records[spotID], nil
}

// Set attaches a record to a spot, replacing any previous record.
func (r *Registry) Set(spotID string, record *models.OccupancyRecord) error {
	if !r.Contains(spotID) {
		return fmt.Errorf("%w: %q", models.ErrInvalidSpot, spotID)
	}
	r.records[spotID] = record
	return nil
}

// Clear frees a spot.
func (r *Registry) Clear(spotID string) error {
	if !r.Contains(spotID) {
		return fmt.Errorf("%w: %q", models.ErrInvalidSpot, spotID)
	}
	delete(r.records, spotID)
	return nil
}

// All returns every spot with its current record in inventory order
// (M1-M5 first, then 1-50).
func (r *Registry) All() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, Entry{SpotID: id, Record: r.records[id]})
	}
	return entries
}

// OccupiedCount returns the number of spots currently occupied.
func (r *Registry) OccupiedCount() int {
	n := 0
	for _, rec := range r.records {
		if rec != nil && rec.Status == models.StatusOccupied {
			n++
		}
	}
	return n
}

// SpotIDs returns the inventory in display order.
func (r *Registry) SpotIDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}
