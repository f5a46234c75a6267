package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ImageTypeProfile marks a user's profile picture.
const ImageTypeProfile = "profile"

// Image is the metadata of an uploaded image. The bytes live in object storage
// under FileName.
type Image struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"userId" json:"userId"`
	ImageType    string             `bson:"imageType" json:"imageType"`
	OriginalName string             `bson:"originalName" json:"originalName"`
	FileName     string             `bson:"fileName" json:"fileName"`
	FileSize     int64              `bson:"fileSize" json:"fileSize"`
	MimeType     string             `bson:"mimeType" json:"mimeType"`
	URL          string             `bson:"url,omitempty" json:"url,omitempty"`
	UploadDate   time.Time          `bson:"uploadDate" json:"uploadDate"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
}

// BusRoute is the subset of a route document the analytics dashboard reads.
type BusRoute struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RouteID   string             `bson:"routeId" json:"routeId"`
	RouteName string             `bson:"routeName" json:"routeName"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
}
