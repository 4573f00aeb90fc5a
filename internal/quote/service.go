package quote

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-quote/internal/obs"
	"github.com/noah-isme/backend-quote/internal/pricing"
)

// SettingsSource yields the pricing settings in force for a request.
type SettingsSource interface {
	Current(ctx context.Context) pricing.Settings
}

// StaticSettings is a SettingsSource that always returns the same settings.
type StaticSettings pricing.Settings

// Current implements SettingsSource.
func (s StaticSettings) Current(context.Context) pricing.Settings { return pricing.Settings(s) }

// Service stamps quotes built by Engine with an id and timestamp and records them.
type Service struct {
	Settings SettingsSource
	Currency string
	Logger   zerolog.Logger
	Now      func() time.Time
	NewID    func() string
}

// Create prices req under the settings currently in force.
func (s *Service) Create(ctx context.Context, req Request, mode Mode) (Quote, error) {
	if s == nil || s.Settings == nil {
		return Quote{}, errors.New("quote service not configured")
	}
	ctx, span := otel.Tracer("quote").Start(ctx, "quote.create")
	defer span.End()

	settings := s.Settings.Current(ctx)
	q := Engine{Settings: settings}.Build(req, mode)
	q.ID = s.newID()
	q.CreatedAt = s.now().UTC().Format(time.RFC3339)
	q.Currency = s.Currency

	oos := q.OutOfStockCount()
	span.SetAttributes(
		attribute.String("quote.id", q.ID),
		attribute.String("quote.mode", string(mode)),
		attribute.Int("quote.items", len(q.Items)),
		attribute.Int("quote.out_of_stock", oos),
		attribute.Int64("quote.grand_total", q.Totals.GrandTotal),
	)
	obs.ObserveQuote(string(mode), len(q.Items)-oos, oos, float64(q.Totals.GrandTotal))

	s.Logger.Debug().
		Str("quote_id", q.ID).
		Str("mode", string(mode)).
		Int("items", len(q.Items)).
		Int("out_of_stock", oos).
		Float64("margin_rate", settings.MarginRate).
		Int64("delivery_fee", q.DeliveryFee).
		Int64("grand_total", q.Totals.GrandTotal).
		Msg("quote created")
	return q, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
