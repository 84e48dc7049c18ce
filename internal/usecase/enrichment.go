package usecase

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"tour-guide-agent/internal/domain"
)

// FetchNearby returns tourist attractions around center. Provider failures
// degrade to an empty slice.
func (s *TourService) FetchNearby(ctx context.Context, center domain.Coordinates) []domain.Location {
	ctx, span := tracer.Start(ctx, "TourService.FetchNearby")
	defer span.End()

	landmarks, err := s.places.SearchNearby(ctx, center)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("nearby landmarks unavailable", "latitude", center.Latitude, "longitude", center.Longitude, "err", err)
		return []domain.Location{}
	}
	if landmarks == nil {
		landmarks = []domain.Location{}
	}
	span.SetAttributes(attribute.Int("landmarks.count", len(landmarks)))
	return landmarks
}

// Enrich gathers supplementary context for a turn. A named place gets its
// details and article; any other query gets an article on the query itself.
// Lookup failures leave the matching field empty.
func (s *TourService) Enrich(ctx context.Context, intent domain.IntentClassification, query string) domain.Enrichment {
	ctx, span := tracer.Start(ctx, "TourService.Enrich")
	defer span.End()

	if !intent.InformationSeeking || intent.Location == "" {
		span.SetAttributes(attribute.String("enrichment.kind", "topic"))
		return domain.Enrichment{Article: s.article(ctx, query)}
	}

	span.SetAttributes(attribute.String("enrichment.kind", "place"))
	var (
		out domain.Enrichment
		wg  sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		place, err := s.places.SearchText(ctx, intent.Location)
		if err != nil {
			s.logger.Warn("place details unavailable", "location", intent.Location, "err", err)
			return
		}
		out.Place = place
	}()
	go func() {
		defer wg.Done()
		out.Article = s.article(ctx, intent.Location)
	}()
	wg.Wait()
	return out
}

func (s *TourService) article(ctx context.Context, phrase string) string {
	article, err := s.wiki.Lookup(ctx, phrase)
	if err != nil {
		s.logger.Warn("encyclopedia lookup failed", "phrase", phrase, "err", err)
		return ""
	}
	return truncateRunes(article, s.cfg.MaxArticleChars)
}

// truncateRunes cuts s to at most limit runes.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
