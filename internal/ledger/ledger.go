package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/estpark/parking-lot/internal/models"
)

// HistoryStore is the remote document store the ledger writes completed
// visits to. A nil store means the service runs in local-cache-only mode.
type HistoryStore interface {
	Insert(ctx context.Context, record models.HistoryRecord) (string, error)
	FindByDate(ctx context.Context, dateKey string) ([]models.HistoryRecord, error)
	Update(ctx context.Context, id string, update models.HistoryUpdate) error
	Delete(ctx context.Context, id string) error
}

// Ledger persists completed visits to the remote store and mirrors them in
// the local cache. The remote store is authoritative for reads when it is
// reachable; the local cache covers reads when it is not and always receives
// every write immediately.
type Ledger struct {
	mu     sync.Mutex
	remote HistoryStore
	cache  *LocalCache
}

// New creates a ledger. remote may be nil when no remote store is configured.
func New(remote HistoryStore, cache *LocalCache) *Ledger {
	return &Ledger{remote: remote, cache: cache}
}

// Write records a completed visit. The remote append is best-effort: a remote
// failure is logged and the record still lands in the local cache, which is
// the record of truth for the running session. The returned record carries
// the store-assigned id, or a locally generated one when the remote append
// did not happen.
func (l *Ledger) Write(ctx context.Context, record models.HistoryRecord) (models.HistoryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.remote != nil {
		id, err := l.remote.Insert(ctx, record)
		if err != nil {
			log.WithError(err).WithField("spot_id", record.SpotID).Error("Remote history write failed, keeping local copy")
		} else {
			record.ID = id
		}
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	records, err := l.cache.Load()
	if err != nil {
		log.WithError(err).Warn("History cache unreadable, starting a fresh list")
		records = nil
	}
	records = append(records, record)
	if err := l.cache.Save(records); err != nil {
		return models.HistoryRecord{}, fmt.Errorf("failed to save history locally: %w", err)
	}
	return record, nil
}

// QueryByDate returns the records for one calendar day. The remote result is
// authoritative when the remote store answers; otherwise the local cache is
// filtered. Ordering is unspecified, callers sort before rendering.
func (l *Ledger) QueryByDate(ctx context.Context, dateKey string) ([]models.HistoryRecord, error) {
	if l.remote != nil {
		records, err := l.remote.FindByDate(ctx, dateKey)
		if err == nil {
			return records, nil
		}
		log.WithError(err).WithField("date_key", dateKey).Warn("Remote history query failed, falling back to local cache")
	}
	return l.queryLocal(dateKey)
}

func (l *Ledger) queryLocal(dateKey string) ([]models.HistoryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.cache.Load()
	if err != nil {
		return nil, err
	}
	var filtered []models.HistoryRecord
	for _, r := range all {
		if r.DateKey == dateKey {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Update edits the mutable fields of a record (plate, vehicle class, amount).
// Admin only. The edit is applied to the remote store and mirrored into the
// local cache so the fallback path never serves the stale version.
func (l *Ledger) Update(ctx context.Context, actor models.Claims, id string, update models.HistoryUpdate) error {
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return fmt.Errorf("%w: editing history requires admin", models.ErrForbidden)
	}

	if l.remote == nil {
		return models.ErrStoreUnavailable
	}
	if err := l.remote.Update(ctx, id, update); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	records, err := l.cache.Load()
	if err != nil {
		log.WithError(err).Warn("History cache unreadable, skipping local mirror of update")
		return nil
	}
	for i := range records {
		if records[i].ID == id {
			records[i].Plate = update.Plate
			records[i].VehicleClass = update.VehicleClass
			records[i].Amount = update.Amount
			if err := l.cache.Save(records); err != nil {
				log.WithError(err).Warn("Failed to mirror history update into local cache")
			}
			break
		}
	}
	return nil
}

// Delete removes a record. Admin only. Mirrored into the local cache like
// Update.
func (l *Ledger) Delete(ctx context.Context, actor models.Claims, id string) error {
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return fmt.Errorf("%w: deleting history requires admin", models.ErrForbidden)
	}

	if l.remote == nil {
		return models.ErrStoreUnavailable
	}
	if err := l.remote.Delete(ctx, id); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	records, err := l.cache.Load()
	if err != nil {
		log.WithError(err).Warn("History cache unreadable, skipping local mirror of delete")
		return nil
	}
	kept := records[:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) != len(records) {
		if err := l.cache.Save(kept); err != nil {
			log.WithError(err).Warn("Failed to mirror history delete into local cache")
		}
	}
	return nil
}
