package quotation

import (
	"context"

	"github.com/industria/cotizacion-service/internal/domain"
	"github.com/industria/cotizacion-service/internal/events"
)

// ApproveStage accepts a pending technician proposal into the canonical
// record. Only office/admin actors may review.
func (s *Service) ApproveStage(ctx context.Context, quotationID string, updateIndex int, actor domain.ActorContext) (*domain.Quotation, error) {
	if !actor.CanReview() {
		return nil, domain.ErrForbidden("solo oficina o admin pueden aprobar")
	}

	var (
		out           *domain.Quotation
		prevStatus    domain.Status
		statusChanged bool
	)

	err := s.repo.WithTx(ctx, func(tr TxRepo) error {
		q, err := tr.GetByIDForUpdate(ctx, quotationID)
		if err != nil {
			return err
		}
		prevStatus = q.Status

		statusChanged, err = q.ApproveUpdate(updateIndex, actor.ID, s.clock.Now())
		if err != nil {
			return err
		}

		if err := tr.Update(ctx, q); err != nil {
			return err
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, out.ID)

	if s.audit != nil {
		s.audit.StageApproved(out.ID, actor.ID, updateIndex)
	}

	if statusChanged {
		s.emit(ctx, events.CotizacionEstadoCambiado, StatusChangedPayload{
			QuotationID:     out.ID,
			PreviousStatus:  string(prevStatus),
			NewStatus:       string(out.Status),
			ProgressPercent: out.ProgressPercent,
			ActorID:         actor.ID,
			ActorRole:       string(actor.Role),
		})
	}
	s.emit(ctx, events.CotizacionActualizada, quotationPayload(out))

	return out, nil
}

// RejectStage records a rejection with a mandatory reason. Canonical state
// is never mutated; only the update entry and the quotation-level approval
// flag change.
func (s *Service) RejectStage(ctx context.Context, quotationID string, updateIndex int, actor domain.ActorContext, reason string) (*domain.Quotation, error) {
	if !actor.CanReview() {
		return nil, domain.ErrForbidden("solo oficina o admin pueden rechazar")
	}

	var out *domain.Quotation

	err := s.repo.WithTx(ctx, func(tr TxRepo) error {
		q, err := tr.GetByIDForUpdate(ctx, quotationID)
		if err != nil {
			return err
		}

		if err := q.RejectUpdate(updateIndex, actor.ID, reason, s.clock.Now()); err != nil {
			return err
		}

		if err := tr.Update(ctx, q); err != nil {
			return err
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, out.ID)

	if s.audit != nil {
		s.audit.StageRejected(out.ID, actor.ID, updateIndex, reason)
	}
	s.emit(ctx, events.CotizacionActualizada, quotationPayload(out))

	return out, nil
}
