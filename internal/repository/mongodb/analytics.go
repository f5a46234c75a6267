package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/bustrack/internal/domain/models"
)

// FindDaily returns the document of (routeID, date), or nil when absent.
func (r *MongoDBRepository) FindDaily(ctx context.Context, routeID string, date time.Time) (*models.DailyAnalytics, error) {
	var doc models.DailyAnalytics
	err := r.collection(analyticsCollection).FindOne(ctx, bson.M{"routeId": routeID, "date": date}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "analytics")
	}
	return &doc, nil
}

// SaveDaily writes the whole document, keyed by (routeId, date).
func (r *MongoDBRepository) SaveDaily(ctx context.Context, doc *models.DailyAnalytics) error {
	opts := options.Replace().SetUpsert(true)
	res, err := r.collection(analyticsCollection).ReplaceOne(ctx, bson.M{"routeId": doc.RouteID, "date": doc.Date}, doc, opts)
	if err != nil {
		return translate(err, "analytics")
	}
	if id, ok := res.UpsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}
	return nil
}

// FindDailies lists documents oldest first.
func (r *MongoDBRepository) FindDailies(ctx context.Context, filter models.DailyFilter) ([]models.DailyAnalytics, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "routeId", Value: 1}})
	cursor, err := r.collection(analyticsCollection).Find(ctx, dailyQuery(filter), opts)
	if err != nil {
		return nil, translate(err, "analytics")
	}

	docs := make([]models.DailyAnalytics, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate(err, "analytics")
	}
	return docs, nil
}

func (r *MongoDBRepository) GetDaily(ctx context.Context, id primitive.ObjectID) (*models.DailyAnalytics, error) {
	var doc models.DailyAnalytics
	if err := r.collection(analyticsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, translate(err, "analytics")
	}
	return &doc, nil
}

// MarkIssueResolved resolves an unresolved issue in place. The filter only
// matches while the issue is still open, so a second call changes nothing.
func (r *MongoDBRepository) MarkIssueResolved(ctx context.Context, docID, issueID primitive.ObjectID, resolvedBy string, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":    docID,
		"issues": bson.M{"$elemMatch": bson.M{"_id": issueID, "resolved": false}},
	}
	set := bson.M{
		"issues.$.resolved":   true,
		"issues.$.resolvedAt": at,
		"updatedAt":           at,
	}
	if resolvedBy != "" {
		set["issues.$.resolvedBy"] = resolvedBy
	}

	res, err := r.collection(analyticsCollection).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, translate(err, "analytics")
	}
	return res.ModifiedCount > 0, nil
}

func dailyQuery(f models.DailyFilter) bson.M {
	query := bson.M{}
	if f.RouteID != "" {
		query["routeId"] = f.RouteID
	}
	if f.Date != nil {
		query["date"] = *f.Date
		return query
	}
	if f.From != nil || f.To != nil {
		span := bson.M{}
		if f.From != nil {
			span["$gte"] = *f.From
		}
		if f.To != nil {
			span["$lte"] = *f.To
		}
		query["date"] = span
	}
	return query
}
