package email

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// FakeSender is the development sender: it records every send instead of
// talking SMTP, so `APP_ENV=dev` runs need no mail server.
type FakeSender struct {
	lg zerolog.Logger

	mu   sync.Mutex
	sent []FakeMessage

	// Err, when set, is returned by every send. Tests use it to exercise
	// the notify consumer's failure path.
	Err error
}

type FakeMessage struct {
	Kind string
	To   string
	Ref  string
}

func NewFakeSender(lg zerolog.Logger) *FakeSender {
	return &FakeSender{lg: lg.With().Str("component", "fake_sender").Logger()}
}

func (s *FakeSender) Sent() []FakeMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FakeMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *FakeSender) record(kind, to, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sent = append(s.sent, FakeMessage{Kind: kind, To: to, Ref: ref})
	s.lg.Info().Str("kind", kind).Str("to", to).Str("ref", ref).Msg("FAKE send")
	return nil
}

func (s *FakeSender) SendOrderConfirmation(_ context.Context, toEmail, orderID string) error {
	return s.record("order_confirmation", toEmail, orderID)
}

func (s *FakeSender) SendQuotationConfirmation(_ context.Context, toEmail, quotationID string) error {
	return s.record("quotation_confirmation", toEmail, quotationID)
}

func (s *FakeSender) SendTechnicianAssigned(_ context.Context, toEmail, quotationID, _ string) error {
	return s.record("technician_assigned", toEmail, quotationID)
}

func (s *FakeSender) SendApprovalNeeded(_ context.Context, toEmail, quotationID, _ string) error {
	return s.record("approval_needed", toEmail, quotationID)
}

func (s *FakeSender) SendWelcome(_ context.Context, toEmail, name string) error {
	return s.record("welcome", toEmail, name)
}
