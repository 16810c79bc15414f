package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the canonical, normalized view of an upstream catalog entry.
// Values are produced by fakestore.TransformProduct and treated as immutable.
type Product struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	RatingRate  float64 `json:"rating_rate"`
	RatingCount int     `json:"rating_count"`
}

// ContentRecord is the persisted representation of a Product.
type ContentRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	APIProductID int       `json:"api_product_id" gorm:"uniqueIndex;not null"`
	Title        string    `json:"title" gorm:"not null"`
	Body         string    `json:"body" gorm:"type:text"`
	Price        float64   `json:"price" gorm:"type:decimal(10,2)"`
	Category     string    `json:"category"`
	RatingRate   float64   `json:"rating_rate"`
	RatingCount  int       `json:"rating_count"`
	ImageURL     string    `json:"image_url"`
	ThumbnailID  *string   `json:"thumbnail_id" gorm:"type:varchar(36)"`
	Status       string    `json:"status" gorm:"default:publish"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Product rebuilds the display model from the stored record.
func (r *ContentRecord) Product() *Product {
	return &Product{
		ID:          r.APIProductID,
		Title:       r.Title,
		Description: r.Body,
		Price:       r.Price,
		Category:    r.Category,
		Image:       r.ImageURL,
		RatingRate:  r.RatingRate,
		RatingCount: r.RatingCount,
	}
}

// Attachment is a downloaded image stored under the media directory.
type Attachment struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	RecordID  uint      `json:"record_id" gorm:"index;not null"`
	SourceURL string    `json:"source_url"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
