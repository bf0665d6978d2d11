package models

import (
	"time"

	"github.com/google/uuid"
)

// Brand asset categories.
const (
	AssetLogo      = "logo"
	AssetFont      = "font"
	AssetColor     = "color_palette"
	AssetGuideline = "guideline"
	AssetImagery   = "imagery"
	AssetOther     = "other"
)

// BrandAsset is a file in a client's brand kit.
type BrandAsset struct {
	ID          uuid.UUID `json:"id"`
	ClientID    uuid.UUID `json:"client_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	FileKey     string    `json:"-"`
	ContentType string    `json:"content_type"`
	FileSize    int64     `json:"file_size"`
	UploadedBy  uuid.UUID `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}
