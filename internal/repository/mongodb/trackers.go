package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/bustrack/internal/domain/models"
)

// UpsertTracker writes the snapshot keyed by trackerId.
func (r *MongoDBRepository) UpsertTracker(ctx context.Context, state *models.TrackerState) error {
	opts := options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.After)
	var stored models.TrackerState
	err := r.collection(trackersCollection).
		FindOneAndReplace(ctx, bson.M{"trackerId": state.TrackerID}, state, opts).
		Decode(&stored)
	if err != nil {
		return translate(err, "tracker")
	}
	state.ID = stored.ID
	return nil
}

func (r *MongoDBRepository) FindTracker(ctx context.Context, trackerID string) (*models.TrackerState, error) {
	var state models.TrackerState
	if err := r.collection(trackersCollection).FindOne(ctx, bson.M{"trackerId": trackerID}).Decode(&state); err != nil {
		return nil, translate(err, "tracker")
	}
	return &state, nil
}

// FindTrackers lists trackers most recently updated first.
func (r *MongoDBRepository) FindTrackers(ctx context.Context, filter models.TrackerFilter) ([]models.TrackerState, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastUpdateTime", Value: -1}})
	cursor, err := r.collection(trackersCollection).Find(ctx, trackerQuery(filter), opts)
	if err != nil {
		return nil, translate(err, "trackers")
	}

	states := make([]models.TrackerState, 0)
	if err := cursor.All(ctx, &states); err != nil {
		return nil, translate(err, "trackers")
	}
	return states, nil
}

func (r *MongoDBRepository) LatestOnlineTracker(ctx context.Context, routeID string) (*models.TrackerState, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "lastUpdateTime", Value: -1}})
	var state models.TrackerState
	err := r.collection(trackersCollection).FindOne(ctx, bson.M{"routeId": routeID, "isOnline": true}, opts).Decode(&state)
	if err != nil {
		return nil, translate(err, "active tracker for route "+routeID)
	}
	return &state, nil
}

func (r *MongoDBRepository) ReplaceTracker(ctx context.Context, state *models.TrackerState) error {
	res, err := r.collection(trackersCollection).ReplaceOne(ctx, bson.M{"trackerId": state.TrackerID}, state)
	if err != nil {
		return translate(err, "tracker")
	}
	if res.MatchedCount == 0 {
		return translate(mongo.ErrNoDocuments, "tracker")
	}
	return nil
}

func (r *MongoDBRepository) DeleteTracker(ctx context.Context, trackerID string) error {
	res, err := r.collection(trackersCollection).DeleteOne(ctx, bson.M{"trackerId": trackerID})
	if err != nil {
		return translate(err, "tracker")
	}
	if res.DeletedCount == 0 {
		return translate(mongo.ErrNoDocuments, "tracker")
	}
	return nil
}

func (r *MongoDBRepository) CountTrackers(ctx context.Context, filter models.TrackerFilter) (int64, error) {
	n, err := r.collection(trackersCollection).CountDocuments(ctx, trackerQuery(filter))
	if err != nil {
		return 0, translate(err, "trackers")
	}
	return n, nil
}

func (r *MongoDBRepository) CountUpdatedSince(ctx context.Context, since time.Time) (int64, error) {
	n, err := r.collection(trackersCollection).CountDocuments(ctx, bson.M{"lastUpdateTime": bson.M{"$gte": since}})
	if err != nil {
		return 0, translate(err, "trackers")
	}
	return n, nil
}

// CountByRoute groups trackers by routeId, ordered by routeId.
func (r *MongoDBRepository) CountByRoute(ctx context.Context) ([]models.RouteCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$routeId", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cursor, err := r.collection(trackersCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translate(err, "trackers")
	}

	counts := make([]models.RouteCount, 0)
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, translate(err, "trackers")
	}
	return counts, nil
}

// MarkOffline flags online trackers last heard from before staleBefore and
// returns the ones it flipped. A tracker that reports between the scan and
// its update is left online.
func (r *MongoDBRepository) MarkOffline(ctx context.Context, staleBefore time.Time) ([]models.TrackerState, error) {
	coll := r.collection(trackersCollection)
	stale := bson.M{"isOnline": true, "lastUpdateTime": bson.M{"$lt": staleBefore}}

	cursor, err := coll.Find(ctx, stale)
	if err != nil {
		return nil, translate(err, "trackers")
	}
	var candidates []models.TrackerState
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, translate(err, "trackers")
	}

	flipped := make([]models.TrackerState, 0, len(candidates))
	for _, state := range candidates {
		res, err := coll.UpdateOne(ctx,
			bson.M{"_id": state.ID, "isOnline": true, "lastUpdateTime": bson.M{"$lt": staleBefore}},
			bson.M{"$set": bson.M{"isOnline": false}})
		if err != nil {
			return flipped, translate(err, "tracker")
		}
		if res.ModifiedCount == 1 {
			state.IsOnline = false
			flipped = append(flipped, state)
		}
	}
	return flipped, nil
}

func trackerQuery(f models.TrackerFilter) bson.M {
	query := bson.M{}
	if f.RouteID != "" {
		query["routeId"] = f.RouteID
	}
	if f.BusNumber != "" {
		query["busNumber"] = f.BusNumber
	}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Online != nil {
		query["isOnline"] = *f.Online
	}
	return query
}
