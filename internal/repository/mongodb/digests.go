package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/bustrack/internal/domain/models"
)

// SaveDigest stores the digest of its day, replacing an earlier run for the same date.
func (r *MongoDBRepository) SaveDigest(ctx context.Context, digest *models.DailyDigest) error {
	_, err := r.collection(digestsCollection).ReplaceOne(ctx,
		bson.M{"date": digest.Date},
		digest,
		options.Replace().SetUpsert(true))
	return translate(err, "digest")
}
