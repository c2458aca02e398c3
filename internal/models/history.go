package models

import "time"

// HistoryRecord is the durable record of one completed visit. It is created
// when a charge is saved and owned by the ledger; timestamps and spot are
// immutable after creation, only plate, vehicle class and amount may be edited.
type HistoryRecord struct {
	ID           string       `json:"id" bson:"_id,omitempty"`
	DateKey      string       `json:"date_key" bson:"date_key"`
	SpotID       string       `json:"spot_id" bson:"spot_id"`
	Plate        string       `json:"plate" bson:"plate"`
	VehicleClass VehicleClass `json:"vehicle_class" bson:"vehicle_class"`
	StartTime    time.Time    `json:"start_time" bson:"start_time"`
	EndTime      time.Time    `json:"end_time" bson:"end_time"`
	DurationMs   int64        `json:"duration_ms" bson:"duration_ms"`
	Amount       string       `json:"amount" bson:"amount"`
	OpenedByName string       `json:"opened_by_name" bson:"opened_by_name"`
	ClosedByName string       `json:"closed_by_name" bson:"closed_by_name"`
	CreatedAt    time.Time    `json:"created_at" bson:"created_at"`
}

// HistoryUpdate carries the editable fields of a history record.
type HistoryUpdate struct {
	Plate        string       `json:"plate"`
	VehicleClass VehicleClass `json:"vehicle_class"`
	Amount       string       `json:"amount"`
}
