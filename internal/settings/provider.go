package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-quote/internal/common"
	"github.com/noah-isme/backend-quote/internal/obs"
	"github.com/noah-isme/backend-quote/internal/pricing"
	"github.com/noah-isme/backend-quote/internal/resilience"
)

// Provider serves the pricing settings in force. Reads never fail: a missing, invalid or
// unreachable store yields Defaults. A positive CacheTTL keeps the last stored value in
// memory for that long. When Breaker is set, reads skip the store while it is open.
type Provider struct {
	Store    Store
	Defaults pricing.Settings
	Logger   zerolog.Logger
	CacheTTL time.Duration
	Breaker  *resilience.Breaker

	mu       sync.Mutex
	cached   pricing.Settings
	cachedAt time.Time
	hasCache bool
	now      func() time.Time
}

// Current returns the stored settings, or Defaults.
func (p *Provider) Current(ctx context.Context) pricing.Settings {
	if p.Store == nil {
		return p.Defaults
	}
	if s, ok := p.fromCache(); ok {
		return s
	}

	s, ok, err := p.get(ctx)
	switch {
	case errors.Is(err, resilience.ErrOpenCircuit):
		obs.ObserveSettingsFallback("breaker_open")
		return p.Defaults
	case err != nil:
		p.Logger.Warn().Err(err).Msg("pricing settings unavailable; using defaults")
		obs.ObserveSettingsFallback("error")
		return p.Defaults
	case !ok:
		obs.ObserveSettingsFallback("absent")
		s = p.Defaults
	default:
		if verr := s.Validate(); verr != nil {
			p.Logger.Warn().Err(verr).Msg("stored pricing settings invalid; using defaults")
			obs.ObserveSettingsFallback("invalid")
			s = p.Defaults
		}
	}
	p.remember(s)
	return s
}

func (p *Provider) get(ctx context.Context) (s pricing.Settings, ok bool, err error) {
	if p.Breaker == nil {
		return p.Store.Get(ctx)
	}
	err = p.Breaker.Do(ctx, func(ctx context.Context) error {
		var gerr error
		s, ok, gerr = p.Store.Get(ctx)
		return gerr
	})
	return s, ok, err
}

// Put validates and saves s. Invalid settings yield a 422 AppError listing the fields.
func (p *Provider) Put(ctx context.Context, s pricing.Settings) error {
	if err := s.Validate(); err != nil {
		var details any
		if verr, ok := err.(*pricing.ValidationError); ok {
			details = map[string]any{"fields": verr.Fields}
		}
		return common.ValidationFailed(err, details)
	}
	if p.Store == nil {
		return ErrNotConfigured
	}
	if err := p.Store.Put(ctx, s); err != nil {
		return err
	}
	p.remember(s)
	p.Logger.Info().
		Float64("margin_rate", s.MarginRate).
		Float64("vat_rate", s.VatRate).
		Float64("delivery_fee_flat", s.DeliveryFeeFlat).
		Float64("delivery_free_threshold", s.DeliveryFreeThreshold).
		Msg("pricing settings updated")
	return nil
}

// Invalidate drops the cached value so the next read goes to the store.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.hasCache = false
	p.mu.Unlock()
}

func (p *Provider) fromCache() (pricing.Settings, bool) {
	if p.CacheTTL <= 0 {
		return pricing.Settings{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasCache || p.clock().Sub(p.cachedAt) >= p.CacheTTL {
		return pricing.Settings{}, false
	}
	return p.cached, true
}

func (p *Provider) remember(s pricing.Settings) {
	if p.CacheTTL <= 0 {
		return
	}
	p.mu.Lock()
	p.cached, p.cachedAt, p.hasCache = s, p.clock(), true
	p.mu.Unlock()
}

func (p *Provider) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}
