package models

import "time"

// SettingsRowID is the primary key of the single settings row.
const SettingsRowID = 1

type Settings struct {
	ID                   uint       `json:"-" gorm:"primaryKey"`
	ProductID            int        `json:"product_id" gorm:"not null;default:1"`
	EnableEnhancedStyles bool       `json:"enable_enhanced_styles" gorm:"not null;default:false"`
	LastCreatedAt        *time.Time `json:"last_created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// DefaultSettings is what install writes when no settings exist yet.
func DefaultSettings() *Settings {
	return &Settings{
		ID:        SettingsRowID,
		ProductID: 1,
	}
}
