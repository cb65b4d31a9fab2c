package models

import "time"

// PaymentMethod is a provider instrument registered to an account. ExternalID
// is unique across the system.
type PaymentMethod struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID  string    `gorm:"type:varchar(64);not null;index" json:"account_id"`
	ExternalID string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"external_id"`
	Type       string    `gorm:"type:varchar(32);not null" json:"type"`
	Brand      string    `json:"brand,omitempty"`
	LastFour   string    `gorm:"type:varchar(4)" json:"last4,omitempty"`
	ExpMonth   int       `json:"exp_month,omitempty"`
	ExpYear    int       `json:"exp_year,omitempty"`
	IsDefault  bool      `gorm:"default:false" json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}
