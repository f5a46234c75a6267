package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/bustrack/internal/domain/models"
)

// InsertArrival stores a new arrival. A duplicate (routeId, busNumber,
// stopName, arrivalDate) surfaces as a conflict.
func (r *MongoDBRepository) InsertArrival(ctx context.Context, record *models.ArrivalRecord) error {
	res, err := r.collection(arrivalsCollection).InsertOne(ctx, record)
	if err != nil {
		return translate(err, "arrival")
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		record.ID = id
	}
	return nil
}

// FindArrival returns the first matching arrival, or nil when none matches.
func (r *MongoDBRepository) FindArrival(ctx context.Context, filter models.ArrivalFilter) (*models.ArrivalRecord, error) {
	var record models.ArrivalRecord
	err := r.collection(arrivalsCollection).FindOne(ctx, arrivalQuery(filter)).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "arrival")
	}
	return &record, nil
}

func (r *MongoDBRepository) FindArrivals(ctx context.Context, filter models.ArrivalFilter, opts models.ListOptions) ([]models.ArrivalRecord, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "arrivalTimestamp", Value: sortDirection(opts.Sort)}})
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := r.collection(arrivalsCollection).Find(ctx, arrivalQuery(filter), findOpts)
	if err != nil {
		return nil, translate(err, "arrivals")
	}

	records := make([]models.ArrivalRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, translate(err, "arrivals")
	}
	return records, nil
}

func (r *MongoDBRepository) CountArrivals(ctx context.Context, filter models.ArrivalFilter) (int64, error) {
	n, err := r.collection(arrivalsCollection).CountDocuments(ctx, arrivalQuery(filter))
	if err != nil {
		return 0, translate(err, "arrivals")
	}
	return n, nil
}

func (r *MongoDBRepository) GetArrival(ctx context.Context, id primitive.ObjectID) (*models.ArrivalRecord, error) {
	var record models.ArrivalRecord
	if err := r.collection(arrivalsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&record); err != nil {
		return nil, translate(err, "arrival")
	}
	return &record, nil
}

func (r *MongoDBRepository) ReplaceArrival(ctx context.Context, record *models.ArrivalRecord) error {
	res, err := r.collection(arrivalsCollection).ReplaceOne(ctx, bson.M{"_id": record.ID}, record)
	if err != nil {
		return translate(err, "arrival")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "arrival")
	}
	return nil
}

func (r *MongoDBRepository) DeleteArrival(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection(arrivalsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "arrival")
	}
	if res.DeletedCount == 0 {
		return translate(mongo.ErrNoDocuments, "arrival")
	}
	return nil
}

func (r *MongoDBRepository) DeleteArrivals(ctx context.Context, filter models.ArrivalFilter) (int64, error) {
	res, err := r.collection(arrivalsCollection).DeleteMany(ctx, arrivalQuery(filter))
	if err != nil {
		return 0, translate(err, "arrivals")
	}
	return res.DeletedCount, nil
}

func arrivalQuery(f models.ArrivalFilter) bson.M {
	query := bson.M{}
	if len(f.IDs) > 0 {
		query["_id"] = bson.M{"$in": f.IDs}
	}
	if f.RouteID != "" {
		query["routeId"] = f.RouteID
	}
	if f.BusNumber != "" {
		query["busNumber"] = f.BusNumber
	}
	if f.StopName != "" {
		query["stopName"] = f.StopName
	}
	if f.Status != "" {
		query["status"] = f.Status
	}

	if f.From != nil || f.To != nil {
		span := bson.M{}
		if f.From != nil {
			span["$gte"] = *f.From
		}
		if f.To != nil {
			if f.ToExclusive {
				span["$lt"] = *f.To
			} else {
				span["$lte"] = *f.To
			}
		}
		query["arrivalTimestamp"] = span
	}
	return query
}

func sortDirection(order models.SortOrder) int {
	if order == models.SortOldestFirst {
		return 1
	}
	return -1
}
