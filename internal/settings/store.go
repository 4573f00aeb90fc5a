// Package settings persists the pricing settings an operator can change at runtime and
// serves the current value to the quote service.
package settings

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

// ErrNotConfigured is returned by writes when no store backs the provider.
var ErrNotConfigured = errors.New("settings: store not configured")

// Store loads and saves the pricing settings document. Get reports false when nothing
// has been saved yet.
type Store interface {
	Get(ctx context.Context) (pricing.Settings, bool, error)
	Put(ctx context.Context, s pricing.Settings) error
}
