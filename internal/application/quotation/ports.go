package quotation

import (
	"context"
	"time"

	"github.com/industria/cotizacion-service/internal/domain"
)

type Clock interface {
	Now() time.Time
}

type ListFilter struct {
	Status   domain.Status
	ClientID string
	Page     int
	PageSize int
}

// Repo is the persistence port for the quotation aggregate. Mutating
// operations go through WithTx so concurrent requests against the same id
// serialize on the backing store's row lock.
type Repo interface {
	Create(ctx context.Context, q *domain.Quotation) error
	GetByID(ctx context.Context, id string) (*domain.Quotation, error)
	List(ctx context.Context, f ListFilter) ([]*domain.Quotation, int, error)
	Delete(ctx context.Context, id string) error

	WithTx(ctx context.Context, fn func(tr TxRepo) error) error
}

// TxRepo is the transactional view used inside WithTx.
type TxRepo interface {
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Quotation, error)
	Update(ctx context.Context, q *domain.Quotation) error
}

// EventPublisher publishes a domain event under its routing key. The
// implementation wraps payload in the wire envelope and stamps occurredAt.
// Best-effort: callers log-and-swallow failures.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventName string, payload any) error
}

type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
