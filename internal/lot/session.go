package lot

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/estpark/parking-lot/internal/events"
	"github.com/estpark/parking-lot/internal/format"
	"github.com/estpark/parking-lot/internal/models"
	"github.com/estpark/parking-lot/internal/registry"
)

// Session owns the live state of the lot: the spot registry plus the two
// ephemeral flows (at most one pending finish and one move at a time, a new
// one silently replaces the old). All operations run under a single mutex so
// every transition completes before the next one starts.
type Session struct {
	mu       sync.Mutex
	registry *registry.Registry

	pendingFinish *models.PendingFinish
	moveCtx       *models.MoveContext

	now            func() time.Time
	publisher      events.Publisher
	blockOverwrite bool
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithPublisher sets the spot event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithBlockOverwrite allows Block to overwrite a non-free spot, matching the
// permissive behavior of the legacy lot UI. Off by default: blocking requires
// a free spot.
func WithBlockOverwrite(allow bool) Option {
	return func(s *Session) { s.blockOverwrite = allow }
}

// NewSession creates a session over a fresh registry with every spot free.
func NewSession(opts ...Option) *Session {
	s := &Session{
		registry:  registry.New(),
		now:       time.Now,
		publisher: events.NoopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requireRole is the single authorization gate for mutating operations. It
// runs before any state is touched, so a rejected call has no partial effects.
func requireRole(actor models.Claims, min models.Role) error {
	if !actor.Role.AtLeast(min) {
		return fmt.Errorf("%w: role %q, need %q", models.ErrForbidden, actor.Role, min)
	}
	return nil
}

// Snapshot returns the current state of every spot in inventory order.
func (s *Session) Snapshot() []registry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.All()
}

// Get returns the record for a single spot, nil when free.
func (s *Session) Get(spotID string) (*models.OccupancyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Get(spotID)
}

// OccupiedCount returns the number of occupied spots.
func (s *Session) OccupiedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.OccupiedCount()
}

// Block takes a free spot out of service, optionally tagging it with a plate.
func (s *Session) Block(actor models.Claims, spotID, plate string) error {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.registry.Get(spotID)
	if err != nil {
		return err
	}
	if current != nil && !s.blockOverwrite {
		return fmt.Errorf("%w: %s is %s", models.ErrNotFree, spotID, current.Status)
	}

	record := &models.OccupancyRecord{Status: models.StatusBlocked, Plate: plate}
	if err := s.registry.Set(spotID, record); err != nil {
		return err
	}
	s.publisher.SpotChanged(spotID, record)
	log.WithFields(log.Fields{"spot_id": spotID, "actor": actor.UserID}).Info("Spot blocked")
	return nil
}

// Open returns a blocked spot to service.
func (s *Session) Open(actor models.Claims, spotID string) error {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.registry.Get(spotID)
	if err != nil {
		return err
	}
	if current == nil || current.Status != models.StatusBlocked {
		return fmt.Errorf("%w: %s", models.ErrNotBlocked, spotID)
	}
	if err := s.registry.Clear(spotID); err != nil {
		return err
	}
	s.publisher.SpotChanged(spotID, nil)
	log.WithFields(log.Fields{"spot_id": spotID, "actor": actor.UserID}).Info("Spot reopened")
	return nil
}

// Occupy starts a visit on a spot. The spot may be free or blocked (starting
// a vehicle on a blocked spot lifts the block); an occupied spot is rejected.
func (s *Session) Occupy(actor models.Claims, spotID string, vc models.VehicleClass, plate string) (*models.OccupancyRecord, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.registry.Get(spotID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Status == models.StatusOccupied {
		return nil, fmt.Errorf("%w: %s is occupied", models.ErrNotFree, spotID)
	}

	record := &models.OccupancyRecord{
		Status:       models.StatusOccupied,
		Plate:        plate,
		VehicleClass: vc,
		StartTime:    s.now(),
		OpenedBy:     actor.Actor(),
	}
	if err := s.registry.Set(spotID, record); err != nil {
		return nil, err
	}
	s.publisher.SpotChanged(spotID, record)
	log.WithFields(log.Fields{
		"spot_id": spotID,
		"vehicle": vc,
		"plate":   plate,
		"actor":   actor.UserID,
	}).Info("Spot occupied")
	return record, nil
}

// BeginFinish snapshots an occupied spot and computes the visit duration. The
// registry is not mutated; the spot stays occupied until the charge is
// confirmed. A finish already in progress is replaced.
func (s *Session) BeginFinish(actor models.Claims, spotID string) (*models.PendingFinish, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.registry.Get(spotID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.Status != models.StatusOccupied {
		return nil, fmt.Errorf("%w: %s", models.ErrNotOccupied, spotID)
	}

	end := s.now()
	pf := &models.PendingFinish{
		SpotID:   spotID,
		Record:   *current,
		EndTime:  end,
		Duration: end.Sub(current.StartTime),
	}
	s.pendingFinish = pf
	return pf, nil
}

// CancelFinish abandons the finish in progress without touching the registry.
func (s *Session) CancelFinish(actor models.Claims) error {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingFinish = nil
	return nil
}

// PendingFinish returns the finish in progress, or nil.
func (s *Session) PendingFinish() *models.PendingFinish {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingFinish
}

// ConfirmCharge closes the visit captured by the pending finish: it emits the
// completed-visit record for the ledger, frees the spot and consumes the
// pending finish. A second call with the same spot fails, so no duplicate
// history record can be produced.
func (s *Session) ConfirmCharge(actor models.Claims, spotID, amount string) (*models.HistoryRecord, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pf := s.pendingFinish
	if pf == nil || pf.SpotID != spotID {
		return nil, fmt.Errorf("%w: spot %s", models.ErrNoPendingFinish, spotID)
	}

	record := &models.HistoryRecord{
		DateKey:      format.DateKey(pf.EndTime),
		SpotID:       pf.SpotID,
		Plate:        pf.Record.Plate,
		VehicleClass: pf.Record.VehicleClass,
		StartTime:    pf.Record.StartTime,
		EndTime:      pf.EndTime,
		DurationMs:   pf.Duration.Milliseconds(),
		Amount:       amount,
		OpenedByName: pf.Record.OpenedBy.DisplayName,
		ClosedByName: actor.Actor().DisplayName,
		CreatedAt:    s.now(),
	}

	if err := s.registry.Clear(spotID); err != nil {
		return nil, err
	}
	s.pendingFinish = nil
	s.publisher.SpotChanged(spotID, nil)
	log.WithFields(log.Fields{
		"spot_id":     spotID,
		"duration_ms": record.DurationMs,
		"amount":      amount,
		"actor":       actor.UserID,
	}).Info("Visit finished")
	return record, nil
}

// BeginMove starts relocating an occupied spot's record. A move already in
// progress is replaced.
func (s *Session) BeginMove(actor models.Claims, spotID string) error {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.registry.Get(spotID)
	if err != nil {
		return err
	}
	if current == nil || current.Status != models.StatusOccupied {
		return fmt.Errorf("%w: %s", models.ErrNotOccupied, spotID)
	}
	s.moveCtx = &models.MoveContext{SourceSpotID: spotID}
	return nil
}

// SelectMoveTarget completes the move in progress. Selecting the source spot
// cancels the move. Selecting an occupied or blocked target fails with
// models.ErrTargetOccupied and leaves the move active so the operator can pick
// again. Selecting a free target relocates the record in one step: no
// observer ever sees the record on both spots or on neither.
func (s *Session) SelectMoveTarget(actor models.Claims, targetID string) error {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.moveCtx == nil {
		return models.ErrNoMove
	}
	source := s.moveCtx.SourceSpotID
	if targetID == source {
		s.moveCtx = nil
		return nil
	}

	target, err := s.registry.Get(targetID)
	if err != nil {
		return err
	}
	if target != nil {
		return fmt.Errorf("%w: %s is %s", models.ErrTargetOccupied, targetID, target.Status)
	}

	record, err := s.registry.Get(source)
	if err != nil {
		return err
	}
	if record == nil || record.Status != models.StatusOccupied {
		// Source changed under the move, e.g. finished meanwhile.
		s.moveCtx = nil
		return fmt.Errorf("%w: %s", models.ErrNotOccupied, source)
	}

	moved := *record
	if err := s.registry.Set(targetID, &moved); err != nil {
		return err
	}
	if err := s.registry.Clear(source); err != nil {
		return err
	}
	s.moveCtx = nil
	s.publisher.SpotChanged(source, nil)
	s.publisher.SpotChanged(targetID, &moved)
	log.WithFields(log.Fields{
		"from":  source,
		"to":    targetID,
		"actor": actor.UserID,
	}).Info("Vehicle moved")
	return nil
}

// CancelMove abandons the move in progress without touching any spot.
func (s *Session) CancelMove(actor models.Claims) error {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moveCtx = nil
	return nil
}

// MoveSource returns the source spot of the move in progress, or "".
func (s *Session) MoveSource() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moveCtx == nil {
		return ""
	}
	return s.moveCtx.SourceSpotID
}
