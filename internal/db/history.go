package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/estpark/parking-lot/internal/models"
)

// historyDoc is the Mongo shape of a history record. The store assigns the
// ObjectID; the rest mirrors models.HistoryRecord.
type historyDoc struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"`
	DateKey      string              `bson:"date_key"`
	SpotID       string              `bson:"spot_id"`
	Plate        string              `bson:"plate"`
	VehicleClass models.VehicleClass `bson:"vehicle_class"`
	StartTime    time.Time           `bson:"start_time"`
	EndTime      time.Time           `bson:"end_time"`
	DurationMs   int64               `bson:"duration_ms"`
	Amount       string              `bson:"amount"`
	OpenedByName string              `bson:"opened_by_name"`
	ClosedByName string              `bson:"closed_by_name"`
	CreatedAt    time.Time           `bson:"created_at"`
}

func docFromRecord(r models.HistoryRecord) historyDoc {
	return historyDoc{
		DateKey:      r.DateKey,
		SpotID:       r.SpotID,
		Plate:        r.Plate,
		VehicleClass: r.VehicleClass,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		DurationMs:   r.DurationMs,
		Amount:       r.Amount,
		OpenedByName: r.OpenedByName,
		ClosedByName: r.ClosedByName,
		CreatedAt:    r.CreatedAt,
	}
}

func (d historyDoc) toRecord() models.HistoryRecord {
	return models.HistoryRecord{
		ID:           d.ID.Hex(),
		DateKey:      d.DateKey,
		SpotID:       d.SpotID,
		Plate:        d.Plate,
		VehicleClass: d.VehicleClass,
		StartTime:    d.StartTime,
		EndTime:      d.EndTime,
		DurationMs:   d.DurationMs,
		Amount:       d.Amount,
		OpenedByName: d.OpenedByName,
		ClosedByName: d.ClosedByName,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoHistoryCollection persists completed visits in the "history"
// collection. It implements ledger.HistoryStore.
type MongoHistoryCollection struct {
	Collection *mongo.Collection
}

// Insert appends a completed visit and returns the store-assigned id.
func (c *MongoHistoryCollection) Insert(ctx context.Context, record models.HistoryRecord) (string, error) {
	if c.Collection == nil {
		return "", fmt.Errorf("mongo collection is nil")
	}
	res, err := c.Collection.InsertOne(ctx, docFromRecord(record))
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// FindByDate returns all visits whose date key matches exactly. Ordering is
// whatever the store returns.
func (c *MongoHistoryCollection) FindByDate(ctx context.Context, dateKey string) ([]models.HistoryRecord, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Collection.Find(ctx, bson.M{"date_key": dateKey})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []historyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]models.HistoryRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.toRecord())
	}
	return records, nil
}

// Update edits the mutable fields of a visit (plate, vehicle class, amount).
func (c *MongoHistoryCollection) Update(ctx context.Context, id string, update models.HistoryUpdate) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %q", models.ErrRecordNotFound, id)
	}

	res, err := c.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"plate":         update.Plate,
		"vehicle_class": update.VehicleClass,
		"amount":        update.Amount,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %q", models.ErrRecordNotFound, id)
	}
	return nil
}

// Delete removes a visit by id.
func (c *MongoHistoryCollection) Delete(ctx context.Context, id string) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %q", models.ErrRecordNotFound, id)
	}

	res, err := c.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %q", models.ErrRecordNotFound, id)
	}
	return nil
}
