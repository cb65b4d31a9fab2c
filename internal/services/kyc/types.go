package kyc

import "time"

// Config controls verification policy.
type Config struct {
	// AutoApprove makes every account eligible and creates records already
	// approved.
	AutoApprove bool
}

// EvidenceSummary describes a submitted document without its content.
type EvidenceSummary struct {
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// StatusView is the read projection returned by GetStatus.
type StatusView struct {
	Status          string            `json:"status"`
	Evidence        []EvidenceSummary `json:"evidence"`
	InitiatedAt     time.Time         `json:"initiated_at"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	AutoApproved    bool              `json:"auto_approved"`
}
