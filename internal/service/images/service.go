package images

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/apperr"
	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/storage"
)

// MaxUploadSize is the largest accepted image in bytes.
const MaxUploadSize = 5 << 20

// Repository persists image metadata.
type Repository interface {
	InsertImage(ctx context.Context, img *models.Image) error
	DeactivateProfileImages(ctx context.Context, userID string, keep primitive.ObjectID) (int64, error)
	FindActiveImage(ctx context.Context, fileName string) (*models.Image, error)
	LatestProfileImage(ctx context.Context, userID string) (*models.Image, error)
	GetImage(ctx context.Context, id primitive.ObjectID) (*models.Image, error)
	DeleteImage(ctx context.Context, id primitive.ObjectID) error
}

// Upload is an incoming image file.
type Upload struct {
	UserID       string
	OriginalName string
	MimeType     string
	Size         int64
	Body         io.Reader
}

// Service stores profile images and their metadata.
type Service struct {
	repo   Repository
	store  storage.ObjectStore
	logger *zap.Logger
	now    func() time.Time
	newKey func(ext string, at time.Time) string
}

// NewService wires the image service.
func NewService(repository Repository, store storage.ObjectStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repository,
		store:  store,
		logger: logger,
		now:    time.Now,
		newKey: objectKey,
	}
}

// UploadProfile stores a new profile image and deactivates the user's previous
// ones. A failure after the bytes are stored removes them again.
func (s *Service) UploadProfile(ctx context.Context, up Upload) (*models.Image, error) {
	if strings.TrimSpace(up.UserID) == "" {
		return nil, apperr.Validation("userId is required")
	}
	if up.Body == nil {
		return nil, apperr.Validation("no image file provided")
	}
	if !strings.HasPrefix(up.MimeType, "image/") {
		return nil, apperr.Validation("only image files are allowed")
	}
	if up.Size > MaxUploadSize {
		return nil, apperr.Validation("image exceeds the %d MB limit", MaxUploadSize>>20)
	}

	now := s.now()
	key := s.newKey(filepath.Ext(up.OriginalName), now)

	url, err := s.store.Put(ctx, key, up.MimeType, up.Body, up.Size)
	if err != nil {
		return nil, err
	}

	img := &models.Image{
		UserID:       up.UserID,
		ImageType:    models.ImageTypeProfile,
		OriginalName: up.OriginalName,
		FileName:     key,
		FileSize:     up.Size,
		MimeType:     up.MimeType,
		URL:          url,
		UploadDate:   now,
		IsActive:     true,
	}
	if err := s.repo.InsertImage(ctx, img); err != nil {
		s.discard(ctx, key)
		return nil, err
	}

	deactivated, err := s.repo.DeactivateProfileImages(ctx, up.UserID, img.ID)
	if err != nil {
		if delErr := s.repo.DeleteImage(ctx, img.ID); delErr != nil {
			s.logger.Error("failed to remove image metadata after failed upload",
				zap.String("image_id", img.ID.Hex()), zap.Error(delErr))
		}
		s.discard(ctx, key)
		return nil, err
	}

	s.logger.Info("profile image uploaded",
		zap.String("user_id", up.UserID),
		zap.String("file", key),
		zap.Int64("size", up.Size),
		zap.Int64("deactivated", deactivated))

	return img, nil
}

// Open returns the metadata and bytes of an active image. The caller closes the body.
func (s *Service) Open(ctx context.Context, fileName string) (*models.Image, *storage.Object, error) {
	img, err := s.repo.FindActiveImage(ctx, fileName)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.store.Get(ctx, img.FileName)
	if err != nil {
		return nil, nil, err
	}
	return img, obj, nil
}

// Profile returns the user's current profile image.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Image, error) {
	return s.repo.LatestProfileImage(ctx, userID)
}

// Delete removes an image's bytes and metadata.
func (s *Service) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.Validation("invalid image id %q", id)
	}

	img, err := s.repo.GetImage(ctx, oid)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, img.FileName); err != nil {
		return err
	}
	if err := s.repo.DeleteImage(ctx, oid); err != nil {
		return err
	}

	s.logger.Info("image deleted", zap.String("image_id", id), zap.String("file", img.FileName))
	return nil
}

// discard removes an object stored by a failed upload.
func (s *Service) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Error("failed to remove orphaned image", zap.String("file", key), zap.Error(err))
	}
}

func objectKey(ext string, at time.Time) string {
	return fmt.Sprintf("%s-%d%s", uuid.NewString(), at.UnixNano(), strings.ToLower(ext))
}
