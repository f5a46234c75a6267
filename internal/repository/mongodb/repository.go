package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	arrivalsCollection  = "arrivals"
	analyticsCollection = "analytics"
	trackersCollection  = "trackers"
	routesCollection    = "busroutes"
	imagesCollection    = "images"
	digestsCollection   = "daily_digests"
)

// MongoDBRepository implements every storage port of the service on one MongoDB database.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// EnsureIndexes creates the indexes the queries rely on. The unique arrival
// index backs the one-arrival-per-bus-stop-day rule; the unique analytics
// index backs the one-document-per-route-day rule.
func (r *MongoDBRepository) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		arrivalsCollection: {
			{
				Keys:    bson.D{{Key: "routeId", Value: 1}, {Key: "busNumber", Value: 1}, {Key: "stopName", Value: 1}, {Key: "arrivalDate", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_bus_stop_day"),
			},
			{Keys: bson.D{{Key: "routeId", Value: 1}, {Key: "arrivalTimestamp", Value: -1}}},
			{Keys: bson.D{{Key: "arrivalTimestamp", Value: -1}}},
		},
		analyticsCollection: {
			{
				Keys:    bson.D{{Key: "routeId", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_route_day"),
			},
			{Keys: bson.D{{Key: "date", Value: 1}}},
		},
		trackersCollection: {
			{Keys: bson.D{{Key: "trackerId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "routeId", Value: 1}, {Key: "lastUpdateTime", Value: -1}}},
		},
		imagesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "imageType", Value: 1}}},
			{Keys: bson.D{{Key: "fileName", Value: 1}}},
		},
		digestsCollection: {
			{Keys: bson.D{{Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, indexes := range specs {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// Ping checks that the primary is reachable.
func (r *MongoDBRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) collection(name string) *mongo.Collection {
	return r.db.Collection(name)
}
