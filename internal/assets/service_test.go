package assets

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/storage"
)

type memStore struct {
	rows      map[uuid.UUID]models.BrandAsset
	createErr error
}

func newMemStore() *memStore { return &memStore{rows: map[uuid.UUID]models.BrandAsset{}} }

func (m *memStore) Create(_ context.Context, a *models.BrandAsset) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.rows[a.ID] = *a
	return nil
}

func (m *memStore) Get(_ context.Context, clientID, id uuid.UUID) (*models.BrandAsset, error) {
	a, ok := m.rows[id]
	if !ok || a.ClientID != clientID {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memStore) List(_ context.Context, clientID uuid.UUID, category string) ([]models.BrandAsset, error) {
	var out []models.BrandAsset
	for _, a := range m.rows {
		if a.ClientID == clientID && (category == "" || a.Category == category) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) Delete(ctx context.Context, clientID, id uuid.UUID) (*models.BrandAsset, error) {
	a, err := m.Get(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	delete(m.rows, id)
	return a, nil
}

type fakeFiles struct {
	objects map[string]string
}

func (f *fakeFiles) PutBrandAsset(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.objects[key] = string(b)
	return "https://bucket/" + key, nil
}

func (f *fakeFiles) DeleteBrandAsset(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeFiles) BrandAssetDownloadURL(_ context.Context, key string) (string, error) {
	return "https://signed/" + key, nil
}

type fakeFeed struct{ tables []string }

func (f *fakeFeed) Publish(_ context.Context, table string, _, _ uuid.UUID) {
	f.tables = append(f.tables, table)
}

func setup() (*Service, *memStore, *fakeFiles, *fakeFeed) {
	store := newMemStore()
	files := &fakeFiles{objects: map[string]string{}}
	feed := &fakeFeed{}
	return NewService(store, files, feed, nil), store, files, feed
}

func upload(name, category, filename string) Upload {
	return Upload{Name: name, Category: category, Filename: filename, Size: 4, Body: strings.NewReader("data")}
}

func TestUploadListDownloadDelete(t *testing.T) {
	svc, store, files, feed := setup()
	ctx := context.Background()
	client := uuid.New()
	sess := &auth.Session{UserID: uuid.New(), Role: models.RoleAdmin}

	a, err := svc.Upload(ctx, sess, client, upload("Primary logo", models.AssetLogo, "logo.png"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.ContentType)
	assert.Equal(t, storage.BrandAssetKey(client, a.ID, "logo.png"), a.FileKey)
	assert.Equal(t, "data", files.objects[a.FileKey])
	assert.Len(t, store.rows, 1)

	_, err = svc.Upload(ctx, sess, client, upload("", "", "guide.pdf"))
	require.NoError(t, err)

	logos, err := svc.List(ctx, client, models.AssetLogo)
	require.NoError(t, err)
	assert.Len(t, logos, 1)
	others, err := svc.List(ctx, client, models.AssetOther)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "guide.pdf", others[0].Name)

	url, err := svc.DownloadURL(ctx, client, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/"+a.FileKey, url)

	_, err = svc.DownloadURL(ctx, uuid.New(), a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, client, a.ID))
	assert.NotContains(t, files.objects, a.FileKey)
	assert.Len(t, feed.tables, 3)
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc, _, files, _ := setup()
	ctx := context.Background()
	sess := &auth.Session{UserID: uuid.New()}

	_, err := svc.Upload(ctx, sess, uuid.New(), upload("x", "banner", "a.png"))
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = svc.Upload(ctx, sess, uuid.New(), upload("x", models.AssetOther, "a.exe"))
	assert.ErrorIs(t, err, ErrFileType)

	big := upload("x", models.AssetOther, "a.png")
	big.Size = storage.MaxBrandAssetFileSize + 1
	_, err = svc.Upload(ctx, sess, uuid.New(), big)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.List(ctx, uuid.New(), "banner")
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.Empty(t, files.objects)
}

func TestUploadRemovesObjectWhenInsertFails(t *testing.T) {
	svc, store, files, feed := setup()
	store.createErr = errors.New("insert failed")

	_, err := svc.Upload(context.Background(), &auth.Session{UserID: uuid.New()}, uuid.New(),
		upload("x", models.AssetFont, "brand.otf"))
	require.Error(t, err)
	assert.Empty(t, files.objects)
	assert.Empty(t, feed.tables)
}
