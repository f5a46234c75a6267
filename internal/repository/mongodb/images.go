package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/bustrack/internal/domain/models"
)

func (r *MongoDBRepository) InsertImage(ctx context.Context, img *models.Image) error {
	res, err := r.collection(imagesCollection).InsertOne(ctx, img)
	if err != nil {
		return translate(err, "image")
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		img.ID = id
	}
	return nil
}

// DeactivateProfileImages clears the active flag of the user's profile images except keep.
func (r *MongoDBRepository) DeactivateProfileImages(ctx context.Context, userID string, keep primitive.ObjectID) (int64, error) {
	res, err := r.collection(imagesCollection).UpdateMany(ctx,
		bson.M{"userId": userID, "imageType": models.ImageTypeProfile, "isActive": true, "_id": bson.M{"$ne": keep}},
		bson.M{"$set": bson.M{"isActive": false}})
	if err != nil {
		return 0, translate(err, "images")
	}
	return res.ModifiedCount, nil
}

func (r *MongoDBRepository) FindActiveImage(ctx context.Context, fileName string) (*models.Image, error) {
	var img models.Image
	err := r.collection(imagesCollection).FindOne(ctx, bson.M{"fileName": fileName, "isActive": true}).Decode(&img)
	if err != nil {
		return nil, translate(err, "image")
	}
	return &img, nil
}

func (r *MongoDBRepository) LatestProfileImage(ctx context.Context, userID string) (*models.Image, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "uploadDate", Value: -1}})
	var img models.Image
	err := r.collection(imagesCollection).
		FindOne(ctx, bson.M{"userId": userID, "imageType": models.ImageTypeProfile, "isActive": true}, opts).
		Decode(&img)
	if err != nil {
		return nil, translate(err, "profile image")
	}
	return &img, nil
}

func (r *MongoDBRepository) GetImage(ctx context.Context, id primitive.ObjectID) (*models.Image, error) {
	var img models.Image
	if err := r.collection(imagesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&img); err != nil {
		return nil, translate(err, "image")
	}
	return &img, nil
}

func (r *MongoDBRepository) DeleteImage(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection(imagesCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "image")
	}
	if res.DeletedCount == 0 {
		return translate(mongo.ErrNoDocuments, "image")
	}
	return nil
}
