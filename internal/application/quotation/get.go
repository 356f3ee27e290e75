package quotation

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/industria/cotizacion-service/internal/domain"
)

func (s *Service) Get(ctx context.Context, id string) (*domain.Quotation, error) {
	if s.cache != nil {
		var cached domain.Quotation
		hit, err := s.cache.Get(ctx, cacheKeyDetails(id), &cached)
		if err != nil {
			zlog.Warn().Err(err).Str("quotation_id", id).Msg("cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKeyDetails(id), q, s.ttlDetails); err != nil {
			zlog.Warn().Err(err).Str("quotation_id", id).Msg("cache write failed")
		}
	}
	return q, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*domain.Quotation, int, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return s.repo.List(ctx, f)
}

// Remove is the explicit administrative delete path; quotations are never
// hard-deleted otherwise.
func (s *Service) Remove(ctx context.Context, id string, actor domain.ActorContext) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden("solo admin puede eliminar cotizaciones")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	if s.audit != nil {
		s.audit.Log("quotation_removed", actor.ID, map[string]string{"quotation_id": id})
	}
	return nil
}
