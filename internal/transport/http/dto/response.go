package dto

import "time"

// QuotationResp is the stable API response model. PendingReview is
// derived: true while a technician proposal awaits office review.
type QuotationResp struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email,omitempty"`
	Description string `json:"description"`

	TechnicianID string `json:"technician_id,omitempty"`

	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	ApprovalStatus  string `json:"approval_status"`

	Updates []ProgressUpdateResp `json:"updates"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Derived
	PendingReview bool `json:"pending_review"`
}

type ProgressUpdateResp struct {
	Message         string            `json:"message"`
	ProposedStatus  string            `json:"proposed_status,omitempty"`
	EstimatedDate   *time.Time        `json:"estimated_date,omitempty"`
	AttachmentURLs  []string          `json:"attachment_urls,omitempty"`
	Materials       string            `json:"materials,omitempty"`
	MaterialList    []MaterialItemReq `json:"material_list,omitempty"`
	ProgressPercent *int              `json:"progress_percent,omitempty"`
	TechnicianID    string            `json:"technician_id,omitempty"`

	AuthorID   string `json:"author_id"`
	AuthorRole string `json:"author_role"`

	ApprovalStatus  string     `json:"approval_status"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewDate      *time.Time `json:"review_date,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type PageResp[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}
