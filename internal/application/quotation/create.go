package quotation

import (
	"context"

	"github.com/industria/cotizacion-service/internal/domain"
	"github.com/industria/cotizacion-service/internal/events"
)

type CreateCmd struct {
	Actor domain.ActorContext

	ClientID    string
	ClientName  string
	ClientEmail string
	Description string
}

func (s *Service) Create(ctx context.Context, cmd CreateCmd) (*domain.Quotation, error) {
	if cmd.Actor.ID == "" {
		return nil, domain.ErrForbidden("not allowed")
	}

	q, err := domain.NewQuotation(cmd.ClientID, cmd.ClientName, cmd.ClientEmail, cmd.Description, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.QuotationCreated(q.ID, cmd.Actor.ID)
	}
	s.emit(ctx, events.CotizacionCreada, quotationPayload(q))

	return q, nil
}
