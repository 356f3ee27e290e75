package quotation

import (
	"context"

	"github.com/industria/cotizacion-service/internal/domain"
	"github.com/industria/cotizacion-service/internal/events"
)

// AssignTechnician puts a technician on record, satisfying the
// FINALIZACION precondition and triggering the assignment notification.
func (s *Service) AssignTechnician(ctx context.Context, quotationID, technicianID string, actor domain.ActorContext) (*domain.Quotation, error) {
	if !actor.CanReview() {
		return nil, domain.ErrForbidden("solo oficina o admin pueden asignar técnicos")
	}

	var out *domain.Quotation

	err := s.repo.WithTx(ctx, func(tr TxRepo) error {
		q, err := tr.GetByIDForUpdate(ctx, quotationID)
		if err != nil {
			return err
		}

		if err := q.AssignTechnician(technicianID, s.clock.Now()); err != nil {
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

	s.emit(ctx, events.CotizacionTecnicoAsignado, TechnicianAssignedPayload{
		QuotationID:  out.ID,
		TechnicianID: out.TechnicianID,
		AssignedBy:   actor.ID,
	})
	s.emit(ctx, events.CotizacionActualizada, quotationPayload(out))

	return out, nil
}
