package lot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estpark/parking-lot/internal/models"
)

var (
	viewer   = models.Claims{UserID: "u-viewer", DisplayName: "Vera Viewer", Role: models.RoleViewer}
	operator = models.Claims{UserID: "u-operator", DisplayName: "Oscar Operator", Role: models.RoleOperator}
	admin    = models.Claims{UserID: "u-admin", DisplayName: "Ada Admin", Role: models.RoleAdmin}
)

// fixedClock returns a clock stuck at base that can be advanced by tests.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time          { return c.now }
func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSession(opts ...Option) (*Session, *fixedClock) {
	clk := &fixedClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local)}
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return NewSession(opts...), clk
}

func TestSession_Occupy(t *testing.T) {
	t.Run("occupy then get", func(t *testing.T) {
		s, clk := newTestSession()

		record, err := s.Occupy(operator, "12", models.VehicleCar, "AB 123 CD")
		require.NoError(t, err)

		got, err := s.Get("12")
		require.NoError(t, err)
		assert.Equal(t, record, got)
		assert.Equal(t, models.StatusOccupied, got.Status)
		assert.Equal(t, models.VehicleCar, got.VehicleClass)
		assert.Equal(t, "AB 123 CD", got.Plate)
		assert.Equal(t, clk.Now(), got.StartTime)
		assert.Equal(t, "Oscar Operator", got.OpenedBy.DisplayName)
	})

	t.Run("occupied spot rejected", func(t *testing.T) {
		s, _ := newTestSession()
		_, err := s.Occupy(operator, "12", models.VehicleCar, "AB 123 CD")
		require.NoError(t, err)

		_, err = s.Occupy(operator, "12", models.VehicleTruck, "ZZ 999 ZZ")
		assert.ErrorIs(t, err, models.ErrNotFree)
	})

	t.Run("blocked spot can be occupied", func(t *testing.T) {
		s, _ := newTestSession()
		require.NoError(t, s.Block(operator, "3", ""))

		_, err := s.Occupy(operator, "3", models.VehicleCar, "")
		assert.NoError(t, err)
	})

	t.Run("invalid spot", func(t *testing.T) {
		s, _ := newTestSession()
		_, err := s.Occupy(operator, "99", models.VehicleCar, "")
		assert.ErrorIs(t, err, models.ErrInvalidSpot)
	})
}

func TestSession_Block(t *testing.T) {
	t.Run("block free spot", func(t *testing.T) {
		s, _ := newTestSession()
		require.NoError(t, s.Block(operator, "M1", "XY 1"))

		got, err := s.Get("M1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusBlocked, got.Status)
		assert.Equal(t, "XY 1", got.Plate)
	})

	t.Run("block occupied spot rejected by default", func(t *testing.T) {
		s, _ := newTestSession()
		_, err := s.Occupy(operator, "5", models.VehicleCar, "AA 1")
		require.NoError(t, err)

		err = s.Block(operator, "5", "")
		assert.ErrorIs(t, err, models.ErrNotFree)

		got, _ := s.Get("5")
		assert.Equal(t, models.StatusOccupied, got.Status)
	})

	t.Run("block overwrite option restores legacy behavior", func(t *testing.T) {
		s, _ := newTestSession(WithBlockOverwrite(true))
		_, err := s.Occupy(operator, "5", models.VehicleCar, "AA 1")
		require.NoError(t, err)

		require.NoError(t, s.Block(operator, "5", "AA 1"))
		got, _ := s.Get("5")
		assert.Equal(t, models.StatusBlocked, got.Status)
	})
}

func TestSession_Open(t *testing.T) {
	s, _ := newTestSession()
	require.NoError(t, s.Block(operator, "7", ""))
	require.NoError(t, s.Open(operator, "7"))

	got, err := s.Get("7")
	require.NoError(t, err)
	assert.Nil(t, got)

	t.Run("open requires blocked", func(t *testing.T) {
		assert.ErrorIs(t, s.Open(operator, "7"), models.ErrNotBlocked)

		_, err := s.Occupy(operator, "8", models.VehicleCar, "")
		require.NoError(t, err)
		assert.ErrorIs(t, s.Open(operator, "8"), models.ErrNotBlocked)
	})
}

func TestSession_FinishFlow(t *testing.T) {
	t.Run("begin finish computes duration without mutating registry", func(t *testing.T) {
		s, clk := newTestSession()
		_, err := s.Occupy(operator, "12", models.VehicleCar, "AB 1")
		require.NoError(t, err)

		clk.Advance(time.Hour)
		pf, err := s.BeginFinish(operator, "12")
		require.NoError(t, err)
		assert.Equal(t, "12", pf.SpotID)
		assert.Equal(t, time.Hour, pf.Duration)
		assert.Equal(t, int64(3600000), pf.Duration.Milliseconds())

		got, _ := s.Get("12")
		require.NotNil(t, got)
		assert.Equal(t, models.StatusOccupied, got.Status)
	})

	t.Run("begin finish on free spot fails", func(t *testing.T) {
		s, _ := newTestSession()
		_, err := s.BeginFinish(operator, "12")
		assert.ErrorIs(t, err, models.ErrNotOccupied)
	})

	t.Run("confirm charge frees the spot and emits a history record", func(t *testing.T) {
		s, clk := newTestSession()
		start := clk.Now()
		_, err := s.Occupy(operator, "12", models.VehicleCar, "AB 1")
		require.NoError(t, err)

		clk.Advance(time.Hour)
		_, err = s.BeginFinish(operator, "12")
		require.NoError(t, err)

		record, err := s.ConfirmCharge(admin, "12", "5000")
		require.NoError(t, err)
		assert.Equal(t, "12", record.SpotID)
		assert.Equal(t, "2024-05-01", record.DateKey)
		assert.Equal(t, start, record.StartTime)
		assert.Equal(t, start.Add(time.Hour), record.EndTime)
		assert.Equal(t, int64(3600000), record.DurationMs)
		assert.Equal(t, "5000", record.Amount)
		assert.Equal(t, "Oscar Operator", record.OpenedByName)
		assert.Equal(t, "Ada Admin", record.ClosedByName)

		got, _ := s.Get("12")
		assert.Nil(t, got)
		assert.Nil(t, s.PendingFinish())
	})

	t.Run("second confirm fails, no duplicate record", func(t *testing.T) {
		s, _ := newTestSession()
		_, err := s.Occupy(operator, "12", models.VehicleCar, "AB 1")
		require.NoError(t, err)
		_, err = s.BeginFinish(operator, "12")
		require.NoError(t, err)

		_, err = s.ConfirmCharge(operator, "12", "5000")
		require.NoError(t, err)

		_, err = s.ConfirmCharge(operator, "12", "5000")
		assert.ErrorIs(t, err, models.ErrNoPendingFinish)
	})

	t.Run("confirm for a different spot fails", func(t *testing.T) {
		s, _ := newTestSession()
		_, err := s.Occupy(operator, "12", models.VehicleCar, "AB 1")
		require.NoError(t, err)
		_, err = s.BeginFinish(operator, "12")
		require.NoError(t, err)

		_, err = s.ConfirmCharge(operator, "13", "100")
		assert.ErrorIs(t, err, models.ErrNoPendingFinish)
	})

	t.Run("cancel finish keeps the spot occupied", func(t *testing.T) {
		s, _ := newTestSession()
		_, err := s.Occupy(operator, "12", models.VehicleCar, "AB 1")
		require.NoError(t, err)
		_, err = s.BeginFinish(operator, "12")
		require.NoError(t, err)

		require.NoError(t, s.CancelFinish(operator))
		assert.Nil(t, s.PendingFinish())

		got, _ := s.Get("12")
		require.NotNil(t, got)
		assert.Equal(t, models.StatusOccupied, got.Status)
	})

	t.Run("a new finish replaces the previous one", func(t *testing.T) {
		s, _ := newTestSession()
		_, err := s.Occupy(operator, "1", models.VehicleCar, "")
		require.NoError(t, err)
		_, err = s.Occupy(operator, "2", models.VehicleTruck, "")
		require.NoError(t, err)

		_, err = s.BeginFinish(operator, "1")
		require.NoError(t, err)
		_, err = s.BeginFinish(operator, "2")
		require.NoError(t, err)

		assert.Equal(t, "2", s.PendingFinish().SpotID)
		_, err = s.ConfirmCharge(operator, "1", "100")
		assert.ErrorIs(t, err, models.ErrNoPendingFinish)
	})

	t.Run("negative duration is stored raw", func(t *testing.T) {
		s, clk := newTestSession()
		_, err := s.Occupy(operator, "12", models.VehicleCar, "")
		require.NoError(t, err)

		clk.Advance(-time.Minute)
		pf, err := s.BeginFinish(operator, "12")
		require.NoError(t, err)
		assert.Equal(t, -time.Minute, pf.Duration)
	})
}

func TestSession_Move(t *testing.T) {
	setup := func(t *testing.T) (*Session, *models.OccupancyRecord) {
		s, _ := newTestSession()
		record, err := s.Occupy(operator, "12", models.VehicleCar, "AB 1")
		require.NoError(t, err)
		require.NoError(t, s.BeginMove(operator, "12"))
		return s, record
	}

	t.Run("move to free spot relocates the record", func(t *testing.T) {
		s, record := setup(t)
		before := s.OccupiedCount()

		require.NoError(t, s.SelectMoveTarget(operator, "30"))

		source, _ := s.Get("12")
		assert.Nil(t, source)
		target, _ := s.Get("30")
		require.NotNil(t, target)
		assert.Equal(t, *record, *target)
		assert.Equal(t, before, s.OccupiedCount())
		assert.Equal(t, "", s.MoveSource())
	})

	t.Run("move to occupied target fails and keeps the move active", func(t *testing.T) {
		s, _ := setup(t)
		_, err := s.Occupy(operator, "30", models.VehicleTruck, "ZZ 9")
		require.NoError(t, err)

		err = s.SelectMoveTarget(operator, "30")
		assert.ErrorIs(t, err, models.ErrTargetOccupied)
		assert.Equal(t, "12", s.MoveSource())

		source, _ := s.Get("12")
		require.NotNil(t, source)
		assert.Equal(t, models.StatusOccupied, source.Status)
	})

	t.Run("move to blocked target fails", func(t *testing.T) {
		s, _ := setup(t)
		require.NoError(t, s.Block(operator, "30", ""))

		err := s.SelectMoveTarget(operator, "30")
		assert.ErrorIs(t, err, models.ErrTargetOccupied)
	})

	t.Run("selecting the source cancels the move", func(t *testing.T) {
		s, _ := setup(t)
		require.NoError(t, s.SelectMoveTarget(operator, "12"))
		assert.Equal(t, "", s.MoveSource())

		source, _ := s.Get("12")
		require.NotNil(t, source)
		assert.Equal(t, models.StatusOccupied, source.Status)
	})

	t.Run("cancel move leaves spots untouched", func(t *testing.T) {
		s, _ := setup(t)
		require.NoError(t, s.CancelMove(operator))
		assert.Equal(t, "", s.MoveSource())

		source, _ := s.Get("12")
		require.NotNil(t, source)
	})

	t.Run("target selection without an active move fails", func(t *testing.T) {
		s, _ := newTestSession()
		assert.ErrorIs(t, s.SelectMoveTarget(operator, "30"), models.ErrNoMove)
	})

	t.Run("begin move requires an occupied source", func(t *testing.T) {
		s, _ := newTestSession()
		assert.ErrorIs(t, s.BeginMove(operator, "12"), models.ErrNotOccupied)

		require.NoError(t, s.Block(operator, "12", ""))
		assert.ErrorIs(t, s.BeginMove(operator, "12"), models.ErrNotOccupied)
	})
}

func TestSession_ViewerForbidden(t *testing.T) {
	s, _ := newTestSession()
	_, err := s.Occupy(operator, "2", models.VehicleCar, "AB 1")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Block(viewer, "1", ""), models.ErrForbidden)
	_, err = s.Occupy(viewer, "1", models.VehicleCar, "")
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = s.BeginFinish(viewer, "2")
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = s.ConfirmCharge(viewer, "2", "100")
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.ErrorIs(t, s.CancelFinish(viewer), models.ErrForbidden)
	assert.ErrorIs(t, s.BeginMove(viewer, "2"), models.ErrForbidden)
	assert.ErrorIs(t, s.SelectMoveTarget(viewer, "3"), models.ErrForbidden)
	assert.ErrorIs(t, s.CancelMove(viewer), models.ErrForbidden)
	assert.ErrorIs(t, s.Open(viewer, "1"), models.ErrForbidden)

	// Nothing changed: the one occupied spot is still the only record.
	assert.Equal(t, 1, s.OccupiedCount())
	got, _ := s.Get("1")
	assert.Nil(t, got)
}
