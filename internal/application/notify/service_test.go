package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industria/cotizacion-service/internal/events"
)

type sentMail struct {
	kind string
	to   string
	ref  string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) record(kind, to, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{kind, to, ref})
	return nil
}

func (f *fakeSender) SendOrderConfirmation(_ context.Context, to, id string) error {
	return f.record("order_confirmation", to, id)
}
func (f *fakeSender) SendQuotationConfirmation(_ context.Context, to, id string) error {
	return f.record("quotation_confirmation", to, id)
}
func (f *fakeSender) SendTechnicianAssigned(_ context.Context, to, id, _ string) error {
	return f.record("technician_assigned", to, id)
}
func (f *fakeSender) SendApprovalNeeded(_ context.Context, to, id, _ string) error {
	return f.record("approval_needed", to, id)
}
func (f *fakeSender) SendWelcome(_ context.Context, to, name string) error {
	return f.record("welcome", to, name)
}

type permanentErr struct{}

func (permanentErr) Error() string   { return "hard bounce" }
func (permanentErr) Permanent() bool { return true }

type broadcastCall struct {
	event string
	data  any
}

type fakeBroadcaster struct {
	calls []broadcastCall
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, eventName string, data any) error {
	f.calls = append(f.calls, broadcastCall{eventName, data})
	return nil
}

type memIdem struct {
	keys map[string]bool
}

func newMemIdem() *memIdem { return &memIdem{keys: map[string]bool{}} }

func (m *memIdem) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memIdem) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func envelope(t *testing.T, event string, payload any) events.Envelope {
	t.Helper()
	body, err := events.Encode(event, payload, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	env, err := events.Decode(body)
	require.NoError(t, err)
	return env
}

func newTestService(sender *fakeSender, bc *fakeBroadcaster, idem *memIdem) *Service {
	return New(sender, bc, idem, "oficina@industria.example", zerolog.Nop())
}

func TestRoutes_CoverExpectedEvents(t *testing.T) {
	s := newTestService(&fakeSender{}, &fakeBroadcaster{}, newMemIdem())
	routes := s.Routes()

	for _, event := range []string{
		events.PedidoCreado,
		events.CotizacionCreada,
		events.CotizacionActualizada,
		events.CotizacionEstadoCambiado,
		events.CotizacionTecnicoAsignado,
		events.CotizacionAprobacionRequerida,
		events.UsuarioCreado,
	} {
		assert.Contains(t, routes, event)
	}
}

func TestPedidoCreado_SendsConfirmation(t *testing.T) {
	sender := &fakeSender{}
	s := newTestService(sender, &fakeBroadcaster{}, newMemIdem())

	env := envelope(t, events.PedidoCreado, map[string]string{
		"order_id":     "ped_1",
		"client_email": "cliente@example.com",
	})
	require.NoError(t, s.Routes()[events.PedidoCreado](context.Background(), env))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, sentMail{"order_confirmation", "cliente@example.com", "ped_1"}, sender.sent[0])
}

func TestPedidoCreado_MissingEmailIsSkipped(t *testing.T) {
	sender := &fakeSender{}
	s := newTestService(sender, &fakeBroadcaster{}, newMemIdem())

	env := envelope(t, events.PedidoCreado, map[string]string{"order_id": "ped_1"})
	require.NoError(t, s.Routes()[events.PedidoCreado](context.Background(), env))
	assert.Empty(t, sender.sent)
}

func TestCotizacionCreada_BroadcastsAndMails(t *testing.T) {
	sender := &fakeSender{}
	bc := &fakeBroadcaster{}
	s := newTestService(sender, bc, newMemIdem())

	env := envelope(t, events.CotizacionCreada, map[string]string{
		"quotation_id": "cot_1",
		"client_email": "cliente@example.com",
	})
	require.NoError(t, s.Routes()[events.CotizacionCreada](context.Background(), env))

	require.Len(t, bc.calls, 1)
	assert.Equal(t, events.CotizacionCreada, bc.calls[0].event)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "quotation_confirmation", sender.sent[0].kind)
}

func TestEstadoCambiado_BroadcastOnly(t *testing.T) {
	sender := &fakeSender{}
	bc := &fakeBroadcaster{}
	s := newTestService(sender, bc, newMemIdem())

	env := envelope(t, events.CotizacionEstadoCambiado, map[string]string{
		"quotation_id": "cot_1",
		"new_status":   "PRODUCCION",
	})
	require.NoError(t, s.Routes()[events.CotizacionEstadoCambiado](context.Background(), env))

	require.Len(t, bc.calls, 1)
	data, ok := bc.calls[0].data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PRODUCCION", data["new_status"])
	assert.Empty(t, sender.sent)
}

func TestAprobacionRequerida_AlertsOffice(t *testing.T) {
	sender := &fakeSender{}
	s := newTestService(sender, &fakeBroadcaster{}, newMemIdem())

	env := envelope(t, events.CotizacionAprobacionRequerida, map[string]string{
		"quotation_id":    "cot_42",
		"proposed_status": "PRODUCCION",
	})
	require.NoError(t, s.Routes()[events.CotizacionAprobacionRequerida](context.Background(), env))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, sentMail{"approval_needed", "oficina@industria.example", "cot_42"}, sender.sent[0])
}

func TestUsuarioCreado_SendsWelcome(t *testing.T) {
	sender := &fakeSender{}
	s := newTestService(sender, &fakeBroadcaster{}, newMemIdem())

	env := envelope(t, events.UsuarioCreado, map[string]string{
		"email": "nuevo@example.com",
		"name":  "Nuevo Usuario",
	})
	require.NoError(t, s.Routes()[events.UsuarioCreado](context.Background(), env))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "welcome", sender.sent[0].kind)
	assert.Equal(t, "nuevo@example.com", sender.sent[0].to)
}

func TestSendOnce_DeduplicatesRedeliveredMessage(t *testing.T) {
	sender := &fakeSender{}
	s := newTestService(sender, &fakeBroadcaster{}, newMemIdem())

	env := envelope(t, events.PedidoCreado, map[string]string{
		"order_id":     "ped_1",
		"client_email": "cliente@example.com",
	})

	handler := s.Routes()[events.PedidoCreado]
	require.NoError(t, handler(context.Background(), env))
	require.NoError(t, handler(context.Background(), env))

	assert.Len(t, sender.sent, 1, "a redelivered message must mail once")
}

func TestSendOnce_TemporaryFailureReleasesClaimAndPropagates(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp timeout")}
	idem := newMemIdem()
	s := newTestService(sender, &fakeBroadcaster{}, idem)

	env := envelope(t, events.PedidoCreado, map[string]string{
		"order_id":     "ped_1",
		"client_email": "cliente@example.com",
	})
	handler := s.Routes()[events.PedidoCreado]

	err := handler(context.Background(), env)
	require.Error(t, err, "temporary failures must reach the consumer's retry path")
	assert.Empty(t, idem.keys, "claim must be released for the retry")

	// Broker redelivers, smtp recovered.
	sender.err = nil
	require.NoError(t, handler(context.Background(), env))
	assert.Len(t, sender.sent, 1)
}

func TestSendOnce_PermanentFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{err: permanentErr{}}
	s := newTestService(sender, &fakeBroadcaster{}, newMemIdem())

	env := envelope(t, events.PedidoCreado, map[string]string{
		"order_id":     "ped_1",
		"client_email": "bad@@example",
	})
	err := s.Routes()[events.PedidoCreado](context.Background(), env)
	assert.NoError(t, err, "retrying a hard bounce wastes the retry budget")
}

func TestBadPayload_IsDroppedNotRetried(t *testing.T) {
	sender := &fakeSender{}
	s := newTestService(sender, &fakeBroadcaster{}, newMemIdem())

	env := events.Envelope{
		Event: events.PedidoCreado,
		Data:  []byte(`["not","an","object"]`),
	}
	assert.NoError(t, s.Routes()[events.PedidoCreado](context.Background(), env))
	assert.Empty(t, sender.sent)
}
