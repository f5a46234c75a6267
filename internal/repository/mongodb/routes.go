package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// CountRoutes counts bus routes, optionally only the active ones.
func (r *MongoDBRepository) CountRoutes(ctx context.Context, activeOnly bool) (int64, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	n, err := r.collection(routesCollection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, translate(err, "routes")
	}
	return n, nil
}
