package assets

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/pkg/storage"
)

var (
	// ErrInvalidCategory is returned for an unknown asset category.
	ErrInvalidCategory = errors.New("invalid asset category")
	// ErrFileType is returned when the extension is not accepted.
	ErrFileType = errors.New("file type not allowed")
	// ErrFileTooLarge is returned above storage.MaxBrandAssetFileSize.
	ErrFileTooLarge = errors.New("file too large")
)

var categories = map[string]bool{
	models.AssetLogo: true, models.AssetFont: true, models.AssetColor: true,
	models.AssetGuideline: true, models.AssetImagery: true, models.AssetOther: true,
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool { return categories[c] }

// Store persists asset rows.
type Store interface {
	Create(ctx context.Context, a *models.BrandAsset) error
	Get(ctx context.Context, clientID, id uuid.UUID) (*models.BrandAsset, error)
	List(ctx context.Context, clientID uuid.UUID, category string) ([]models.BrandAsset, error)
	Delete(ctx context.Context, clientID, id uuid.UUID) (*models.BrandAsset, error)
}

// FileStore holds asset objects. *storage.S3 satisfies it.
type FileStore interface {
	PutBrandAsset(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	DeleteBrandAsset(ctx context.Context, key string) error
	BrandAssetDownloadURL(ctx context.Context, key string) (string, error)
}

// ChangePublisher announces row changes on the realtime feed.
type ChangePublisher interface {
	Publish(ctx context.Context, table string, clientID, rowID uuid.UUID)
}

// Upload is a file received from the client.
type Upload struct {
	Name        string
	Category    string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service manages brand assets.
type Service struct {
	store  Store
	files  FileStore
	feed   ChangePublisher
	logger *zap.Logger
}

// NewService creates a brand asset service.
func NewService(store Store, files FileStore, feed ChangePublisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, files: files, feed: feed, logger: logger}
}

// List returns the client's assets.
func (s *Service) List(ctx context.Context, clientID uuid.UUID, category string) ([]models.BrandAsset, error) {
	if category != "" && !ValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	return s.store.List(ctx, clientID, category)
}

// Upload stores the object, then the row. A failed insert removes the object again.
func (s *Service) Upload(ctx context.Context, sess *auth.Session, clientID uuid.UUID, up Upload) (*models.BrandAsset, error) {
	if up.Category == "" {
		up.Category = models.AssetOther
	}
	if !ValidCategory(up.Category) {
		return nil, ErrInvalidCategory
	}
	if !storage.AllowedFile(up.Filename) {
		return nil, ErrFileType
	}
	if up.Size > storage.MaxBrandAssetFileSize {
		return nil, ErrFileTooLarge
	}
	name := strings.TrimSpace(up.Name)
	if name == "" {
		name = up.Filename
	}
	ct := up.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = storage.ContentTypeForFilename(up.Filename)
	}

	a := &models.BrandAsset{
		ID:          uuid.New(),
		ClientID:    clientID,
		Name:        name,
		Category:    up.Category,
		ContentType: ct,
		FileSize:    up.Size,
		UploadedBy:  sess.UserID,
	}
	a.FileKey = storage.BrandAssetKey(clientID, a.ID, up.Filename)
	if _, err := s.files.PutBrandAsset(ctx, a.FileKey, ct, up.Body, up.Size); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		if derr := s.files.DeleteBrandAsset(context.WithoutCancel(ctx), a.FileKey); derr != nil {
			s.logger.Warn("orphaned brand asset object", zap.String("key", a.FileKey), zap.Error(derr))
		}
		return nil, err
	}
	s.feed.Publish(ctx, realtime.TableBrandAssets, clientID, a.ID)
	return a, nil
}

// DownloadURL presigns the asset object.
func (s *Service) DownloadURL(ctx context.Context, clientID, id uuid.UUID) (string, error) {
	a, err := s.store.Get(ctx, clientID, id)
	if err != nil {
		return "", err
	}
	return s.files.BrandAssetDownloadURL(ctx, a.FileKey)
}

// Delete removes the row, then the object. A leftover object is only logged.
func (s *Service) Delete(ctx context.Context, clientID, id uuid.UUID) error {
	a, err := s.store.Delete(ctx, clientID, id)
	if err != nil {
		return err
	}
	if err := s.files.DeleteBrandAsset(ctx, a.FileKey); err != nil {
		s.logger.Warn("delete brand asset object failed", zap.String("key", a.FileKey), zap.Error(err))
	}
	s.feed.Publish(ctx, realtime.TableBrandAssets, clientID, id)
	return nil
}
