package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Verification statuses
const (
	KYCStatusPending  = "pending"
	KYCStatusApproved = "approved"
	KYCStatusRejected = "rejected"
)

// Evidence is one submitted verification document. Content is opaque.
type Evidence struct {
	Type       string    `json:"type"`
	Content    []byte    `json:"content"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// EvidenceList is stored as a JSON array column.
type EvidenceList []Evidence

// Value implements the driver.Valuer interface
func (e EvidenceList) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (e *EvidenceList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*e = nil
		return nil
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	}
	return fmt.Errorf("unsupported evidence column type %T", value)
}

type KYCVerification struct {
	ID              string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID       string       `gorm:"type:varchar(64);uniqueIndex;not null" json:"account_id"`
	Status          string       `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	Evidence        EvidenceList `gorm:"type:jsonb" json:"evidence"`
	ApprovedAt      *time.Time   `json:"approved_at"`
	RejectionReason *string      `json:"rejection_reason"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TableName pins the table name used by the schema bootstrap.
func (KYCVerification) TableName() string {
	return "kyc_verifications"
}
