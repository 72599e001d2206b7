package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/internal/repo"
)

// StatsService answers reporting queries over comments.
type StatsService struct {
	DB *gorm.DB
}

// DailyBreakdown counts comments created in [from, to), in total, blocked,
// and per UTC day. An empty window yields zero counts.
func (s *StatsService) DailyBreakdown(ctx context.Context, from, to time.Time) (repo.Breakdown, error) {
	ctx, span := otel.Tracer("services/StatsService").Start(ctx, "DailyBreakdown",
		trace.WithAttributes(
			attribute.String("from", from.UTC().Format(time.RFC3339)),
			attribute.String("to", to.UTC().Format(time.RFC3339)),
		))
	defer span.End()

	if to.Before(from) {
		return repo.Breakdown{}, ErrInvalidRange
	}
	if to.Equal(from) {
		return repo.Breakdown{Days: []repo.DayCount{}}, nil
	}
	return repo.CommentBreakdown(ctx, s.DB, from, to)
}
