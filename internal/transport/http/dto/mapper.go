package dto

import (
	"github.com/industria/cotizacion-service/internal/domain"
)

func ToQuotationResp(q *domain.Quotation) QuotationResp {
	updates := make([]ProgressUpdateResp, 0, len(q.Updates))
	for i := range q.Updates {
		updates = append(updates, toProgressUpdateResp(&q.Updates[i]))
	}

	return QuotationResp{
		ID:          q.ID,
		ClientID:    q.ClientID,
		ClientName:  q.ClientName,
		ClientEmail: q.ClientEmail,
		Description: q.Description,

		TechnicianID: q.TechnicianID,

		Status:          string(q.Status),
		ProgressPercent: q.ProgressPercent,
		ApprovalStatus:  string(q.ApprovalStatus),

		Updates: updates,

		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,

		PendingReview: q.ApprovalStatus == domain.ApprovalPending,
	}
}

func toProgressUpdateResp(u *domain.ProgressUpdate) ProgressUpdateResp {
	materials := make([]MaterialItemReq, 0, len(u.MaterialList))
	for _, m := range u.MaterialList {
		materials = append(materials, MaterialItemReq{Name: m.Name, Quantity: m.Quantity, Unit: m.Unit})
	}
	if len(materials) == 0 {
		materials = nil
	}

	return ProgressUpdateResp{
		Message:         u.Message,
		ProposedStatus:  string(u.ProposedStatus),
		EstimatedDate:   u.EstimatedDate,
		AttachmentURLs:  u.AttachmentURLs,
		Materials:       u.Materials,
		MaterialList:    materials,
		ProgressPercent: u.ProgressPercent,
		TechnicianID:    u.TechnicianID,

		AuthorID:   u.AuthorID,
		AuthorRole: string(u.AuthorRole),

		ApprovalStatus:  string(u.ApprovalStatus),
		ReviewedBy:      u.ReviewedBy,
		ReviewDate:      u.ReviewDate,
		RejectionReason: u.RejectionReason,

		CreatedAt: u.CreatedAt,
	}
}

// ToProgressUpdate maps the request body onto the domain shape. Author,
// approval state and timestamps are set by the service, never by the
// caller.
func ToProgressUpdate(req AddProgressReq) domain.ProgressUpdate {
	materials := make([]domain.MaterialItem, 0, len(req.MaterialList))
	for _, m := range req.MaterialList {
		materials = append(materials, domain.MaterialItem{Name: m.Name, Quantity: m.Quantity, Unit: m.Unit})
	}
	if len(materials) == 0 {
		materials = nil
	}

	return domain.ProgressUpdate{
		Message:         req.Message,
		ProposedStatus:  domain.NormalizeStatus(req.ProposedStatus),
		EstimatedDate:   req.EstimatedDate,
		AttachmentURLs:  req.AttachmentURLs,
		Materials:       req.Materials,
		MaterialList:    materials,
		ProgressPercent: req.ProgressPercent,
		TechnicianID:    req.TechnicianID,
	}
}
