package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaterialItem is one structured entry of the material list attached to a
// progress update.
type MaterialItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity,omitempty"`
	Unit     string  `json:"unit,omitempty"`
}

// ProgressUpdate is one entry of a quotation's progress history. Once its
// ApprovalStatus leaves PENDING the entry is immutable; the only mutation
// paths are ApproveUpdate/RejectUpdate on the owning quotation.
type ProgressUpdate struct {
	Message         string         `json:"message"`
	ProposedStatus  Status         `json:"proposed_status,omitempty"`
	EstimatedDate   *time.Time     `json:"estimated_date,omitempty"`
	AttachmentURLs  []string       `json:"attachment_urls,omitempty"`
	Materials       string         `json:"materials,omitempty"`
	MaterialList    []MaterialItem `json:"material_list,omitempty"`
	ProgressPercent *int           `json:"progress_percent,omitempty"`
	TechnicianID    string         `json:"technician_id,omitempty"`

	AuthorID   string `json:"author_id"`
	AuthorRole Role   `json:"author_role"`

	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
	ReviewDate      *time.Time     `json:"review_date,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (u *ProgressUpdate) hasMaterials() bool {
	return strings.TrimSpace(u.Materials) != "" || len(u.MaterialList) > 0
}

// Quotation is the work-order aggregate. Canonical status, percent and the
// progress history are owned here and mutated only through the methods
// below; Updates is kept most-recent-first.
type Quotation struct {
	ID          string
	ClientID    string
	ClientName  string
	ClientEmail string
	Description string

	TechnicianID string // empty = unassigned

	Status          Status
	ProgressPercent int
	ApprovalStatus  ApprovalStatus

	Updates []ProgressUpdate

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewQuotation(clientID, clientName, clientEmail, description string, now time.Time) (*Quotation, error) {
	clientID = strings.TrimSpace(clientID)
	clientName = strings.TrimSpace(clientName)
	description = strings.TrimSpace(description)

	if clientID == "" {
		return nil, ErrValidation("client_id is required")
	}
	if clientName == "" || len(clientName) > 160 {
		return nil, ErrValidation("client_name is required and must be <= 160 chars")
	}
	if description == "" || len(description) > 4000 {
		return nil, ErrValidation("description is required and must be <= 4000 chars")
	}

	return &Quotation{
		ID:              uuid.NewString(),
		ClientID:        clientID,
		ClientName:      clientName,
		ClientEmail:     strings.TrimSpace(clientEmail),
		Description:     description,
		Status:          StatusPendiente,
		ProgressPercent: ProgressForStatus(StatusPendiente),
		ApprovalStatus:  ApprovalApproved,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}, nil
}

// approvedPhotoCount counts attachments carried by already-approved updates.
func (q *Quotation) approvedPhotoCount() int {
	n := 0
	for i := range q.Updates {
		if q.Updates[i].ApprovalStatus == ApprovalApproved {
			n += len(q.Updates[i].AttachmentURLs)
		}
	}
	return n
}

func (q *Quotation) hasPriorMaterials() bool {
	for i := range q.Updates {
		if q.Updates[i].hasMaterials() {
			return true
		}
	}
	return false
}

// ValidateTransition checks a proposed status change against the fixed
// forward-only sequence and the per-target preconditions. The update being
// submitted (may be nil) contributes newly supplied materials, photos and
// technician to the precondition checks.
func (q *Quotation) ValidateTransition(next Status, u *ProgressUpdate) error {
	if next == StatusCancelada {
		return nil
	}

	ci := q.Status.SequenceIndex()
	ni := next.SequenceIndex()

	// Legacy/unknown statuses on either side are exempt from strict
	// ordering; preconditions below still apply to canonical targets.
	if ci >= 0 && ni >= 0 && ni > ci+1 {
		allowed := statusSequence[ci+1]
		return ErrValidationMeta(
			fmt.Sprintf("no se puede saltar estados; el siguiente estado permitido es %s", allowed),
			map[string]string{"next_allowed": string(allowed)},
		)
	}

	switch next {
	case StatusProduccion:
		newMaterials := u != nil && u.hasMaterials()
		if !newMaterials && !q.hasPriorMaterials() {
			return ErrValidation("se requiere registrar materiales para pasar a PRODUCCION")
		}
	case StatusInstalacion:
		photos := q.approvedPhotoCount()
		if u != nil {
			photos += len(u.AttachmentURLs)
		}
		if photos < 3 {
			return ErrValidation("se requiere mínimo 3 fotos aprobadas para pasar a INSTALACION")
		}
	case StatusFinalizacion:
		assigned := q.TechnicianID != "" || (u != nil && strings.TrimSpace(u.TechnicianID) != "")
		if !assigned {
			return ErrValidation("se requiere un técnico asignado para pasar a FINALIZACION")
		}
	}

	return nil
}

// ApplyProgress validates and appends an update. Technician-authored status
// changes are parked as PENDING and do not touch canonical state; everything
// else commits immediately. Returns whether the update was committed and
// whether the canonical status actually changed.
func (q *Quotation) ApplyProgress(u ProgressUpdate, actor ActorContext, now time.Time) (committed bool, statusChanged bool, err error) {
	if strings.TrimSpace(u.Message) == "" {
		return false, false, ErrValidation("message is required")
	}

	proposed := u.ProposedStatus
	changesStatus := proposed != "" && proposed != q.Status

	if changesStatus {
		if err := q.ValidateTransition(proposed, &u); err != nil {
			return false, false, err
		}
	}

	requiresApproval := actor.Role == RoleTecnico && changesStatus

	u.AuthorID = actor.ID
	u.AuthorRole = actor.Role
	u.CreatedAt = now.UTC()
	if requiresApproval {
		u.ApprovalStatus = ApprovalPending
	} else {
		u.ApprovalStatus = ApprovalApproved
	}

	// History is most-recent-first.
	q.Updates = append([]ProgressUpdate{u}, q.Updates...)
	q.UpdatedAt = now.UTC()

	if requiresApproval {
		q.ApprovalStatus = ApprovalPending
		return false, false, nil
	}

	q.ApprovalStatus = ApprovalApproved
	statusChanged = q.commit(&q.Updates[0])
	return true, statusChanged, nil
}

// commit applies an approved update's effect to the canonical state.
func (q *Quotation) commit(u *ProgressUpdate) (statusChanged bool) {
	if u.ProposedStatus != "" && u.ProposedStatus != q.Status {
		q.Status = u.ProposedStatus
		statusChanged = true
	}
	if strings.TrimSpace(u.TechnicianID) != "" {
		q.TechnicianID = strings.TrimSpace(u.TechnicianID)
	}

	switch {
	case u.ProgressPercent != nil && *u.ProgressPercent >= 0 && *u.ProgressPercent <= 100:
		q.ProgressPercent = *u.ProgressPercent
	case statusChanged:
		q.ProgressPercent = ProgressForStatus(q.Status)
	}
	return statusChanged
}

// ApproveUpdate commits a pending update into the canonical record.
func (q *Quotation) ApproveUpdate(index int, reviewerID string, now time.Time) (statusChanged bool, err error) {
	u, err := q.updateAt(index)
	if err != nil {
		return false, err
	}
	if u.ApprovalStatus != ApprovalPending {
		return false, ErrInvalidState("la actualización no está pendiente")
	}

	t := now.UTC()
	u.ApprovalStatus = ApprovalApproved
	u.ReviewedBy = reviewerID
	u.ReviewDate = &t

	statusChanged = q.commit(u)
	q.ApprovalStatus = ApprovalApproved
	q.UpdatedAt = t
	return statusChanged, nil
}

// RejectUpdate records a rejection. Canonical status and percent are never
// touched by this path.
func (q *Quotation) RejectUpdate(index int, reviewerID, reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return ErrValidation("rejection reason is required")
	}
	u, err := q.updateAt(index)
	if err != nil {
		return err
	}
	if u.ApprovalStatus != ApprovalPending {
		return ErrInvalidState("la actualización no está pendiente")
	}

	t := now.UTC()
	u.ApprovalStatus = ApprovalRejected
	u.ReviewedBy = reviewerID
	u.ReviewDate = &t
	u.RejectionReason = strings.TrimSpace(reason)

	q.ApprovalStatus = ApprovalRejected
	q.UpdatedAt = t
	return nil
}

func (q *Quotation) AssignTechnician(technicianID string, now time.Time) error {
	technicianID = strings.TrimSpace(technicianID)
	if technicianID == "" {
		return ErrValidation("technician_id is required")
	}
	q.TechnicianID = technicianID
	q.UpdatedAt = now.UTC()
	return nil
}

func (q *Quotation) updateAt(index int) (*ProgressUpdate, error) {
	if index < 0 || index >= len(q.Updates) {
		return nil, ErrNotFound("progress update not found")
	}
	return &q.Updates[index], nil
}
