package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog/internal/apperr"
	"catalog/internal/database"
	"catalog/internal/events"
	"catalog/internal/logger"
	"catalog/internal/metrics"
	"catalog/internal/models"
	"catalog/internal/services/fakestore"

	"gorm.io/gorm"
)

// DefaultBatchSize is used by DeleteAll when no batch size is given.
const DefaultBatchSize = 100

// ContentRepository persists products as content records, one per upstream id.
type ContentRepository struct {
	db         *gorm.DB
	images     *ImageStore
	dispatcher *events.Dispatcher
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewContentRepository(db *gorm.DB, images *ImageStore, dispatcher *events.Dispatcher, logger *logger.Logger, m *metrics.Metrics) *ContentRepository {
	return &ContentRepository{
		db:         db,
		images:     images,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// CreateProduct returns the id of the record for product, inserting it on
// first sight. Only the insert path downloads the image and emits
// ProductCreated. Products arrive normalized and are stored as given.
func (r *ContentRepository) CreateProduct(ctx context.Context, product *models.Product) (uint, error) {
	if product == nil || product.ID <= 0 {
		return 0, apperr.New(apperr.KindInvalidArgument, "Invalid product data")
	}

	existingID, found, err := r.FindIDByAPIProductID(ctx, product.ID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindPersistence, "Failed to look up product record.", err)
	}
	if found {
		return existingID, nil
	}

	record := &models.ContentRecord{
		APIProductID: product.ID,
		Title:        product.Title,
		Body:         product.Description,
		Price:        product.Price,
		Category:     product.Category,
		RatingRate:   product.RatingRate,
		RatingCount:  product.RatingCount,
		ImageURL:     product.Image,
		Status:       "publish",
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if database.IsUniqueViolation(err) {
			// Lost a race with a concurrent insert; the winner owns the side effects.
			winnerID, found, findErr := r.FindIDByAPIProductID(ctx, product.ID)
			if findErr == nil && found {
				return winnerID, nil
			}
		}
		r.logger.Error("Failed to insert content record for product %d: %v", product.ID, err)
		return 0, apperr.Wrap(apperr.KindPersistence, "Failed to create product record.", err)
	}
	r.metrics.RecordsCreated.Inc()

	r.attachImage(ctx, record.ID, product.Image)

	r.dispatcher.Dispatch(ctx, events.NewProductCreated(record.ID, *product, r.now()))

	return record.ID, nil
}

// FindIDByAPIProductID looks up a record id by upstream product id. Only the
// id column is read.
func (r *ContentRepository) FindIDByAPIProductID(ctx context.Context, apiProductID int) (uint, bool, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.ContentRecord{}).
		Where("api_product_id = ?", apiProductID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// Get loads a record with its id.
func (r *ContentRepository) Get(ctx context.Context, id uint) (*models.ContentRecord, error) {
	var record models.ContentRecord
	err := r.db.WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %d: %w", id, err)
	}
	return &record, nil
}

// Thumbnail returns the attachment set as the record's image, if any.
func (r *ContentRepository) Thumbnail(ctx context.Context, record *models.ContentRecord) (*models.Attachment, error) {
	if record.ThumbnailID == nil {
		return nil, nil
	}
	var a models.Attachment
	err := r.db.WithContext(ctx).First(&a, "id = ?", *record.ThumbnailID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAll removes every record and its attachments, batchSize records at a time.
func (r *ContentRepository) DeleteAll(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	deleted := 0
	for {
		var ids []uint
		err := r.db.WithContext(ctx).
			Model(&models.ContentRecord{}).
			Order("id").
			Limit(batchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return deleted, fmt.Errorf("failed to list records: %w", err)
		}
		if len(ids) == 0 {
			return deleted, nil
		}

		if err := r.deleteBatch(ctx, ids); err != nil {
			return deleted, err
		}
		deleted += len(ids)
		r.logger.Debug("Deleted %d content records (%d total)", len(ids), deleted)
	}
}

func (r *ContentRepository) deleteBatch(ctx context.Context, ids []uint) error {
	var attachments []models.Attachment
	if err := r.db.WithContext(ctx).Where("record_id IN ?", ids).Find(&attachments).Error; err != nil {
		return fmt.Errorf("failed to list attachments: %w", err)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id IN ?", ids).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.ContentRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}

	for _, a := range attachments {
		if err := r.images.Remove(a); err != nil {
			r.logger.Warn("Failed to remove media file %s: %v", a.Path, err)
		}
	}
	return nil
}

// attachImage never fails the caller; a record without an image is acceptable.
func (r *ContentRepository) attachImage(ctx context.Context, recordID uint, imageURL string) {
	if imageURL == "" {
		return
	}
	if !fakestore.IsHTTPURL(imageURL) {
		r.metrics.ImageAttachments.WithLabelValues("skipped").Inc()
		r.logger.Warn("Skipping image with unsupported scheme for record %d", recordID)
		return
	}

	attachment, err := r.images.Attach(ctx, r.db, recordID, imageURL)
	if err != nil {
		r.metrics.ImageAttachments.WithLabelValues("failed").Inc()
		r.logger.Warn("Failed to attach image %s to record %d: %v", imageURL, recordID, err)
		return
	}
	r.metrics.ImageAttachments.WithLabelValues("attached").Inc()
	r.logger.Debug("Attached image %s to record %d", attachment.FileName, recordID)
}
