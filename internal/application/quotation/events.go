package quotation

import (
	"time"

	"github.com/industria/cotizacion-service/internal/domain"
)

// QuotationPayload is the business payload for cotizacion.creada and
// cotizacion.actualizada.
type QuotationPayload struct {
	QuotationID     string    `json:"quotation_id"`
	ClientID        string    `json:"client_id"`
	ClientEmail     string    `json:"client_email,omitempty"`
	TechnicianID    string    `json:"technician_id,omitempty"`
	Status          string    `json:"status"`
	ProgressPercent int       `json:"progress_percent"`
	ApprovalStatus  string    `json:"approval_status"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatusChangedPayload is the business payload for cotizacion.estado_cambiado.
type StatusChangedPayload struct {
	QuotationID     string `json:"quotation_id"`
	PreviousStatus  string `json:"previous_status"`
	NewStatus       string `json:"new_status"`
	ProgressPercent int    `json:"progress_percent"`
	ActorID         string `json:"actor_id,omitempty"`
	ActorRole       string `json:"actor_role,omitempty"`
}

// ApprovalNeededPayload alerts office staff about a parked technician
// proposal (cotizacion.aprobacion_requerida).
type ApprovalNeededPayload struct {
	QuotationID    string `json:"quotation_id"`
	UpdateIndex    int    `json:"update_index"`
	ProposedStatus string `json:"proposed_status,omitempty"`
	AuthorID       string `json:"author_id"`
	Message        string `json:"message,omitempty"`
}

// TechnicianAssignedPayload is the business payload for
// cotizacion.tecnico_asignado.
type TechnicianAssignedPayload struct {
	QuotationID  string `json:"quotation_id"`
	TechnicianID string `json:"technician_id"`
	AssignedBy   string `json:"assigned_by,omitempty"`
}

func quotationPayload(q *domain.Quotation) QuotationPayload {
	return QuotationPayload{
		QuotationID:     q.ID,
		ClientID:        q.ClientID,
		ClientEmail:     q.ClientEmail,
		TechnicianID:    q.TechnicianID,
		Status:          string(q.Status),
		ProgressPercent: q.ProgressPercent,
		ApprovalStatus:  string(q.ApprovalStatus),
		UpdatedAt:       q.UpdatedAt,
	}
}
