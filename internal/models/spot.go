package models

import "time"

// SpotStatus represents the occupancy state of a parking spot.
type SpotStatus string

const (
	StatusFree     SpotStatus = "free"
	StatusBlocked  SpotStatus = "blocked"
	StatusOccupied SpotStatus = "occupied"
)

// VehicleClass represents the kind of vehicle parked in a spot.
type VehicleClass string

const (
	VehicleCar        VehicleClass = "car"
	VehicleTruck      VehicleClass = "truck"
	VehicleMotorcycle VehicleClass = "motorcycle"
)

// IsValidVehicleClass checks if a vehicle class is valid
func IsValidVehicleClass(vc VehicleClass) bool {
	switch vc {
	case VehicleCar, VehicleTruck, VehicleMotorcycle:
		return true
	default:
		return false
	}
}

// ActorRef identifies the user who opened or closed a visit.
type ActorRef struct {
	ID          string `json:"id" bson:"id"`
	DisplayName string `json:"display_name" bson:"display_name"`
}

// OccupancyRecord is the state attached to a non-free spot. A Blocked spot
// carries at most a plate; an Occupied spot carries the full visit details.
type OccupancyRecord struct {
	Status       SpotStatus   `json:"status"`
	Plate        string       `json:"plate,omitempty"`
	VehicleClass VehicleClass `json:"vehicle_class,omitempty"`
	StartTime    time.Time    `json:"start_time,omitempty"`
	OpenedBy     ActorRef     `json:"opened_by,omitempty"`
}

// PendingFinish is the ephemeral snapshot taken when an operator starts the
// finish flow on an occupied spot. At most one exists per session; starting a
// new finish flow replaces it.
type PendingFinish struct {
	SpotID   string
	Record   OccupancyRecord
	EndTime  time.Time
	Duration time.Duration
}

// MoveContext marks an in-progress move of an occupied spot's record. While it
// is set, spot selections are interpreted as move targets. At most one exists
// per session.
type MoveContext struct {
	SourceSpotID string
}
