// Package events defines the wire-level envelope shared by every producer
// and consumer on the industria.events exchange, plus the closed set of
// event names used as routing keys.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event names double as AMQP routing keys. The set is append-only: removing
// or renaming an entry breaks deployed consumers.
const (
	PedidoCreado         = "pedido.creado"
	PedidoActualizado    = "pedido.actualizado"
	PedidoEstadoCambiado = "pedido.estado_cambiado"

	CotizacionCreada              = "cotizacion.creada"
	CotizacionActualizada         = "cotizacion.actualizada"
	CotizacionEstadoCambiado      = "cotizacion.estado_cambiado"
	CotizacionImagenSubida        = "cotizacion.imagen_subida"
	CotizacionImagenAprobada      = "cotizacion.imagen_aprobada"
	CotizacionImagenRechazada     = "cotizacion.imagen_rechazada"
	CotizacionAprobacionRequerida = "cotizacion.aprobacion_requerida"
	CotizacionTecnicoAsignado     = "cotizacion.tecnico_asignado"

	ProductoCreado      = "producto.creado"
	ProductoActualizado = "producto.actualizado"
	ProductoEliminado   = "producto.eliminado"

	PagoCreado     = "pago.creado"
	PagoCompletado = "pago.completado"

	UsuarioCreado      = "usuario.creado"
	UsuarioActualizado = "usuario.actualizado"
)

// Envelope is the wire wrapper around a domain event:
//
//	{"event": "<name>", "occurredAt": "<ISO-8601>", "data": {...}}
//
// OccurredAt is stamped at publish time, never by the caller's clock.
type Envelope struct {
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// HandlerFunc processes one decoded envelope. Returning an error triggers
// the consumer's retry/dead-letter path for that message only.
type HandlerFunc func(ctx context.Context, env Envelope) error

// DecodeError marks a structurally unparseable message. Callers must ack
// and drop: retrying will never fix a parse failure.
type DecodeError struct {
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode envelope: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("decode envelope: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Encode wraps payload in an envelope stamped with now.
func Encode(name string, payload any, now time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Envelope{
		Event:      name,
		OccurredAt: now.UTC(),
		Data:       data,
	})
}

// Decode parses an envelope off the wire. A non-object body, a missing
// event name or a missing data field is a *DecodeError.
func Decode(body []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, &DecodeError{Reason: "body is not a JSON object"}
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Envelope{}, &DecodeError{Reason: "malformed JSON", Cause: err}
	}
	if env.Event == "" {
		return Envelope{}, &DecodeError{Reason: "missing event name"}
	}
	if len(env.Data) == 0 {
		return Envelope{}, &DecodeError{Reason: "missing data field"}
	}
	return env, nil
}
