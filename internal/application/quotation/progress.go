package quotation

import (
	"context"

	"github.com/industria/cotizacion-service/internal/domain"
	"github.com/industria/cotizacion-service/internal/events"
)

// AddProgress runs a proposed update through the state machine inside a row
// lock. Committed changes and parked proposals both persist before any
// event is emitted; persistence failures surface to the caller and emit
// nothing.
func (s *Service) AddProgress(ctx context.Context, quotationID string, update domain.ProgressUpdate, actor domain.ActorContext) (*domain.Quotation, error) {
	if actor.ID == "" {
		return nil, domain.ErrForbidden("not allowed")
	}

	var (
		out           *domain.Quotation
		prevStatus    domain.Status
		committed     bool
		statusChanged bool
	)

	err := s.repo.WithTx(ctx, func(tr TxRepo) error {
		q, err := tr.GetByIDForUpdate(ctx, quotationID)
		if err != nil {
			return err
		}
		prevStatus = q.Status

		committed, statusChanged, err = q.ApplyProgress(update, actor, s.clock.Now())
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
		s.audit.ProgressSubmitted(out.ID, actor.ID, !committed)
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

	if !committed {
		// Parked proposal: alert office staff out-of-band.
		s.emit(ctx, events.CotizacionAprobacionRequerida, ApprovalNeededPayload{
			QuotationID:    out.ID,
			UpdateIndex:    0,
			ProposedStatus: string(out.Updates[0].ProposedStatus),
			AuthorID:       actor.ID,
			Message:        out.Updates[0].Message,
		})
	}

	return out, nil
}
