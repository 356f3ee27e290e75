package quotation

import (
	"context"
	"fmt"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/industria/cotizacion-service/internal/audit"
	"github.com/industria/cotizacion-service/internal/metrics"
)

type Service struct {
	repo  Repo
	pub   EventPublisher
	cache Cache
	audit *audit.Logger
	clock Clock

	ttlDetails time.Duration
}

func New(repo Repo, clock Clock, pub EventPublisher, cache Cache, auditLog *audit.Logger, ttlDetails time.Duration) *Service {
	if ttlDetails == 0 {
		ttlDetails = 5 * time.Minute
	}
	return &Service{
		repo:       repo,
		pub:        pub,
		cache:      cache,
		audit:      auditLog,
		clock:      clock,
		ttlDetails: ttlDetails,
	}
}

func cacheKeyDetails(id string) string {
	return fmt.Sprintf("cotizacion:details:%s", id)
}

// emit publishes a domain event best-effort. The transition already
// committed; a broker failure is counted and logged, never surfaced.
func (s *Service) emit(ctx context.Context, eventName string, payload any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishEvent(ctx, eventName, payload); err != nil {
		metrics.PublishFailuresTotal.WithLabelValues(eventName).Inc()
		zlog.Error().
			Err(err).
			Str("rk", eventName).
			Msg("publish domain event failed")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(eventName).Inc()
}

// invalidate drops the details cache entry after a committed write.
func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	key := cacheKeyDetails(id)
	if err := s.cache.Delete(ctx, key); err != nil {
		zlog.Warn().Err(err).Str("key", key).Msg("cache invalidate failed")
	}
}
