package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/apperr"
	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/service/images"
	"github.com/mamadbah2/bustrack/internal/storage"
)

// ImageService stores profile images.
type ImageService interface {
	UploadProfile(ctx context.Context, up images.Upload) (*models.Image, error)
	Open(ctx context.Context, fileName string) (*models.Image, *storage.Object, error)
	Profile(ctx context.Context, userID string) (*models.Image, error)
	Delete(ctx context.Context, id string) error
}

// ImageHandler serves /api/images.
type ImageHandler struct {
	svc    ImageService
	logger *zap.Logger
}

// NewImageHandler constructs the image HTTP adapter.
func NewImageHandler(svc ImageService, logger *zap.Logger) *ImageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageHandler{svc: svc, logger: logger}
}

// UploadProfile accepts a multipart "image" file for "userId".
func (h *ImageHandler) UploadProfile(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, h.logger, apperr.Validation("no image file provided"))
		return
	}

	body, err := file.Open()
	if err != nil {
		respondError(c, h.logger, apperr.Validation("unreadable image file"))
		return
	}
	defer body.Close()

	img, err := h.svc.UploadProfile(c.Request.Context(), images.Upload{
		UserID:       c.PostForm("userId"),
		OriginalName: file.Filename,
		MimeType:     file.Header.Get("Content-Type"),
		Size:         file.Size,
		Body:         body,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusCreated, withURL(img))
}

// Serve streams an active image.
func (h *ImageHandler) Serve(c *gin.Context) {
	img, obj, err := h.svc.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = img.MimeType
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400")
	if obj.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, obj.Body); err != nil {
		h.logger.Warn("image stream interrupted", zap.String("file", img.FileName), zap.Error(err))
	}
}

// Profile returns the user's current profile image metadata.
func (h *ImageHandler) Profile(c *gin.Context) {
	img, err := h.svc.Profile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, withURL(img))
}

// Delete removes an image.
func (h *ImageHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("imageId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "image deleted"})
}

// withURL points images without a public URL at the serving endpoint.
func withURL(img *models.Image) *models.Image {
	if img.URL != "" {
		return img
	}
	out := *img
	out.URL = "/api/images/" + img.FileName
	return &out
}
