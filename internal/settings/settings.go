package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog/internal/apperr"
	"catalog/internal/events"
	"catalog/internal/models"
	"catalog/internal/services/fakestore"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Input is what the settings form may change. LastCreatedAt is deliberately absent.
type Input struct {
	ProductID            *int  `json:"product_id"`
	EnableEnhancedStyles *bool `json:"enable_enhanced_styles"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Install writes default settings unless a row already exists.
func (s *Service) Install(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.DefaultSettings()).Error
	if err != nil {
		return fmt.Errorf("failed to install settings: %w", err)
	}
	return nil
}

// Get returns the stored settings, or defaults if none were installed.
func (s *Service) Get(ctx context.Context) (*models.Settings, error) {
	var st models.Settings
	err := s.db.WithContext(ctx).First(&st, models.SettingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &st, nil
}

// Save applies form input. An out-of-range product id is reported and the
// stored value is kept; the other fields are still saved.
func (s *Service) Save(ctx context.Context, in Input) (*models.Settings, error) {
	if err := s.Install(ctx); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	var validationErr error
	if in.ProductID != nil {
		if fakestore.ValidProductID(*in.ProductID) {
			current.ProductID = *in.ProductID
		} else {
			validationErr = apperr.New(apperr.KindInvalidArgument,
				fmt.Sprintf("Product ID must be between %d and %d.", fakestore.MinProductID, fakestore.MaxProductID))
		}
	}
	if in.EnableEnhancedStyles != nil {
		current.EnableEnhancedStyles = *in.EnableEnhancedStyles
	}

	err = s.db.WithContext(ctx).
		Model(&models.Settings{}).
		Where("id = ?", models.SettingsRowID).
		Updates(map[string]interface{}{
			"product_id":             current.ProductID,
			"enable_enhanced_styles": current.EnableEnhancedStyles,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	saved, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return saved, validationErr
}

// OnProductCreated records when the last content record was created. It is
// the only writer of LastCreatedAt.
func (s *Service) OnProductCreated(ctx context.Context, event events.ProductCreated) error {
	at := event.CreatedAt
	if at.IsZero() {
		at = s.now()
	}

	if err := s.Install(ctx); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Model(&models.Settings{}).
		Where("id = ?", models.SettingsRowID).
		Update("last_created_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to update last created timestamp: %w", err)
	}
	return nil
}

// Delete removes the settings row.
func (s *Service) Delete(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&models.Settings{}, models.SettingsRowID).Error; err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}

// EnhancedStyles reports the stored style flag. A read failure means plain styles.
func (s *Service) EnhancedStyles(ctx context.Context) bool {
	st, err := s.Get(ctx)
	if err != nil {
		return false
	}
	return st.EnableEnhancedStyles
}
