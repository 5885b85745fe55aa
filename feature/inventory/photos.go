package inventory

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"loankeeper/core/fault"
	"loankeeper/feature/inventory/models"

	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
)

// UploadPhoto stores an item photo and records its object key.
// Replacing an existing photo overwrites the object in place.
func (s *Service) UploadPhoto(ctx context.Context, id, filename, contentType string, content io.Reader, size int64) (*models.Item, error) {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return nil, fault.Validationf("unsupported photo type %q", ext)
	}

	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.NotFoundf("item %s", id)
		}
		return nil, err
	}

	object := "items/" + item.ID + "/photo" + ext
	if _, err := s.client.PutObject(ctx, s.bucket, object, content, size,
		minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ?", id).
		Update("photo_object", object).Error; err != nil {
		return nil, err
	}
	item.PhotoObject = object
	return &item, nil
}

// GetPhoto streams the item's photo. The caller closes the reader.
func (s *Service) GetPhoto(ctx context.Context, id string) (io.ReadCloser, string, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fault.NotFoundf("item %s", id)
		}
		return nil, "", err
	}
	if item.PhotoObject == "" {
		return nil, "", fault.NotFoundf("item %s has no photo", id)
	}

	rc, err := s.client.GetObject(ctx, s.bucket, item.PhotoObject, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	return rc, item.PhotoObject, nil
}

// DeletePhoto removes the item's photo object and clears the key.
func (s *Service) DeletePhoto(ctx context.Context, id string) error {
	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fault.NotFoundf("item %s", id)
		}
		return err
	}
	if item.PhotoObject == "" {
		return nil
	}

	if err := s.removePhotoObject(ctx, item.PhotoObject); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ?", id).
		Update("photo_object", "").Error
}

func (s *Service) removePhotoObject(ctx context.Context, object string) error {
	return s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{})
}
