package notify

import (
	"context"
	"time"
)

// Sender delivers notification mails. Implementations classify failures:
// permanent errors (bad address, auth) are logged and dropped here,
// temporary ones propagate so the consumer retries the message.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, toEmail, orderID string) error
	SendQuotationConfirmation(ctx context.Context, toEmail, quotationID string) error
	SendTechnicianAssigned(ctx context.Context, toEmail, quotationID, technicianID string) error
	SendApprovalNeeded(ctx context.Context, toEmail, quotationID, proposedStatus string) error
	SendWelcome(ctx context.Context, toEmail, name string) error
}

// Broadcaster pushes an event to connected realtime clients.
type Broadcaster interface {
	Broadcast(ctx context.Context, eventName string, data any) error
}

// Idempotency claims a key once per ttl window. The broker redelivers
// messages on retry; mail must not be sent twice for the same one.
// Delete releases a claim when the guarded side effect did not happen.
type Idempotency interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}
