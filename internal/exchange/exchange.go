// Package exchange defines the venue connector surface the trading engine
// depends on. Implementations live in subpackages, one per venue.
package exchange

import (
	"context"
	"errors"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/sizing"
)

// Connector errors.
var (
	// ErrUnknownQuantity is returned when the venue cannot report the live
	// position size. Callers must not synthesize a quantity in that case.
	ErrUnknownQuantity = errors.New("live quantity unknown")

	// ErrOrderRejected is returned when the venue refuses an order.
	ErrOrderRejected = errors.New("order rejected")
)

// Connector is one venue. All blocking calls take a context; LastPrice is
// served from an in-process cache and never blocks.
type Connector interface {
	// Name identifies the venue, e.g. "bybit".
	Name() string

	// FetchBars retrieves up to limit of the most recent bars for a
	// symbol and timeframe, ordered oldest first.
	FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error)

	// PlaceOrder submits a market order and returns the venue order ID.
	// Exit orders set reduceOnly. Placement is never retried: a failed
	// call may or may not have reached the venue, and the caller decides
	// how to reconcile.
	PlaceOrder(ctx context.Context, symbol string, side domain.Side, qty float64, reduceOnly bool) (string, error)

	// LiveQuantity reports the venue-side position size for a symbol.
	// Returns ErrUnknownQuantity if the venue cannot say.
	LiveQuantity(ctx context.Context, symbol string) (float64, error)

	// Rules retrieves the tradability constraints for a symbol.
	Rules(ctx context.Context, symbol string) (sizing.VenueRules, error)

	// LastPrice returns the freshest streamed price for a symbol, and
	// false when no ticker has been seen yet.
	LastPrice(symbol string) (float64, bool)
}
