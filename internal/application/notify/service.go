// Package notify holds the consumer-side reactions to domain events:
// confirmation and alert mails plus the realtime fan-out to dashboards.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/industria/cotizacion-service/internal/events"
)

const idempotencyTTL = 24 * time.Hour

type Service struct {
	sender      Sender
	broadcaster Broadcaster
	idem        Idempotency
	officeEmail string
	lg          zerolog.Logger
}

func New(sender Sender, broadcaster Broadcaster, idem Idempotency, officeEmail string, lg zerolog.Logger) *Service {
	return &Service{
		sender:      sender,
		broadcaster: broadcaster,
		idem:        idem,
		officeEmail: officeEmail,
		lg:          lg.With().Str("component", "notify").Logger(),
	}
}

// Routes maps event names to handlers. The consumer acks anything not
// listed here.
func (s *Service) Routes() map[string]events.HandlerFunc {
	return map[string]events.HandlerFunc{
		events.PedidoCreado:                  s.handlePedidoCreado,
		events.CotizacionCreada:              s.handleCotizacionCreada,
		events.CotizacionActualizada:         s.handleBroadcastOnly,
		events.CotizacionEstadoCambiado:      s.handleBroadcastOnly,
		events.CotizacionTecnicoAsignado:     s.handleTecnicoAsignado,
		events.CotizacionAprobacionRequerida: s.handleAprobacionRequerida,
		events.UsuarioCreado:                 s.handleUsuarioCreado,
	}
}

type orderPayload struct {
	OrderID     string `json:"order_id"`
	ClientEmail string `json:"client_email"`
}

type quotationPayload struct {
	QuotationID  string `json:"quotation_id"`
	ClientEmail  string `json:"client_email"`
	TechnicianID string `json:"technician_id"`
}

type approvalPayload struct {
	QuotationID    string `json:"quotation_id"`
	ProposedStatus string `json:"proposed_status"`
}

type userPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Service) handlePedidoCreado(ctx context.Context, env events.Envelope) error {
	var p orderPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		s.dropBadPayload(env, err)
		return nil
	}
	if p.ClientEmail == "" {
		s.lg.Warn().Str("event", env.Event).Str("order_id", p.OrderID).Msg("no client email; skipping confirmation mail")
		return nil
	}
	return s.sendOnce(ctx, env, p.OrderID, func() error {
		return s.sender.SendOrderConfirmation(ctx, p.ClientEmail, p.OrderID)
	})
}

func (s *Service) handleCotizacionCreada(ctx context.Context, env events.Envelope) error {
	var p quotationPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		s.dropBadPayload(env, err)
		return nil
	}

	s.broadcast(ctx, env)

	if p.ClientEmail == "" {
		return nil
	}
	return s.sendOnce(ctx, env, p.QuotationID, func() error {
		return s.sender.SendQuotationConfirmation(ctx, p.ClientEmail, p.QuotationID)
	})
}

func (s *Service) handleBroadcastOnly(ctx context.Context, env events.Envelope) error {
	s.broadcast(ctx, env)
	return nil
}

func (s *Service) handleTecnicoAsignado(ctx context.Context, env events.Envelope) error {
	var p quotationPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		s.dropBadPayload(env, err)
		return nil
	}

	s.broadcast(ctx, env)

	if p.ClientEmail == "" {
		return nil
	}
	return s.sendOnce(ctx, env, p.QuotationID, func() error {
		return s.sender.SendTechnicianAssigned(ctx, p.ClientEmail, p.QuotationID, p.TechnicianID)
	})
}

func (s *Service) handleAprobacionRequerida(ctx context.Context, env events.Envelope) error {
	var p approvalPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		s.dropBadPayload(env, err)
		return nil
	}

	s.broadcast(ctx, env)

	if s.officeEmail == "" {
		return nil
	}
	return s.sendOnce(ctx, env, p.QuotationID, func() error {
		return s.sender.SendApprovalNeeded(ctx, s.officeEmail, p.QuotationID, p.ProposedStatus)
	})
}

func (s *Service) handleUsuarioCreado(ctx context.Context, env events.Envelope) error {
	var p userPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		s.dropBadPayload(env, err)
		return nil
	}
	if p.Email == "" {
		return nil
	}
	return s.sendOnce(ctx, env, p.Email, func() error {
		return s.sender.SendWelcome(ctx, p.Email, p.Name)
	})
}

// sendOnce runs send at most once per (event, ref, occurredAt). A retried
// message carries the same envelope, so its key is already claimed when
// the mail went out on an earlier attempt.
func (s *Service) sendOnce(ctx context.Context, env events.Envelope, ref string, send func() error) error {
	key := fmt.Sprintf("notify:mail:%s:%s:%d", env.Event, ref, env.OccurredAt.UnixNano())

	first, err := s.idem.MarkOnce(ctx, key, idempotencyTTL)
	if err != nil {
		// Degraded redis means a duplicate mail is possible; still better
		// than no mail.
		s.lg.Warn().Err(err).Str("key", key).Msg("idempotency check failed; sending anyway")
	} else if !first {
		s.lg.Info().Str("key", key).Msg("mail already sent for this message; skipping")
		return nil
	}

	if err := send(); err != nil {
		if isPermanent(err) {
			s.lg.Error().Err(err).Str("event", env.Event).Str("ref", ref).Msg("permanent send failure; not retrying")
			return nil
		}
		// Release the claim so the retried message can send.
		if delErr := s.idem.Delete(ctx, key); delErr != nil {
			s.lg.Warn().Err(delErr).Str("key", key).Msg("could not release idempotency claim")
		}
		return err
	}
	return nil
}

func (s *Service) broadcast(ctx context.Context, env events.Envelope) {
	if s.broadcaster == nil {
		return
	}
	var data any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		data = json.RawMessage(env.Data)
	}
	if err := s.broadcaster.Broadcast(ctx, env.Event, data); err != nil {
		s.lg.Warn().Err(err).Str("event", env.Event).Msg("realtime broadcast failed")
	}
}

func (s *Service) dropBadPayload(env events.Envelope, err error) {
	s.lg.Error().Err(err).Str("event", env.Event).Msg("payload does not match schema; dropping")
}

func isPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}
