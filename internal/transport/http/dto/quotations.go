package dto

import "time"

type CreateQuotationReq struct {
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	Description string `json:"description"`
}

type MaterialItemReq struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity,omitempty"`
	Unit     string  `json:"unit,omitempty"`
}

type AddProgressReq struct {
	Message         string            `json:"message"`
	ProposedStatus  string            `json:"proposed_status,omitempty"`
	EstimatedDate   *time.Time        `json:"estimated_date,omitempty"`
	AttachmentURLs  []string          `json:"attachment_urls,omitempty"`
	Materials       string            `json:"materials,omitempty"`
	MaterialList    []MaterialItemReq `json:"material_list,omitempty"`
	ProgressPercent *int              `json:"progress_percent,omitempty"`
	TechnicianID    string            `json:"technician_id,omitempty"`
}

type RejectStageReq struct {
	Reason string `json:"reason"`
}

type AssignTechnicianReq struct {
	TechnicianID string `json:"technician_id"`
}
