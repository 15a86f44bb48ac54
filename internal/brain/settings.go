package brain

import (
	"sync/atomic"
	"time"

	"adaptive-trend-bot/internal/domain"
)

// Settings is one immutable published state. The loop reads whichever
// version is current at the start of a tick and uses it for the whole
// tick; fields are never mutated after publication.
type Settings struct {
	Version   uint64
	UpdatedAt time.Time
	Params    domain.RiskParameters

	// blocked maps symbol to expiry; the zero time means blocked until
	// explicitly cleared.
	blocked map[string]time.Time
}

// IsBlocked reports whether a symbol is ineligible for new entries.
func (s *Settings) IsBlocked(symbol string, now time.Time) bool {
	until, ok := s.blocked[symbol]
	if !ok {
		return false
	}
	return until.IsZero() || until.After(now)
}

// BlockedSymbols returns the blocked symbols in map order.
func (s *Settings) BlockedSymbols() []string {
	out := make([]string, 0, len(s.blocked))
	for sym := range s.blocked {
		out = append(out, sym)
	}
	return out
}

// Handle is the publication point between the brain and the trading
// loop: writers replace the whole settings value, readers get a
// consistent snapshot without locks.
type Handle struct {
	current atomic.Pointer[Settings]
	version atomic.Uint64
}

// NewHandle creates a handle seeded with the given parameters and no
// blocked symbols.
func NewHandle(initial domain.RiskParameters, at time.Time) *Handle {
	h := &Handle{}
	h.current.Store(&Settings{
		Version:   h.version.Add(1),
		UpdatedAt: at,
		Params:    initial,
		blocked:   map[string]time.Time{},
	})
	return h
}

// Current returns the latest published settings.
func (h *Handle) Current() *Settings {
	return h.current.Load()
}

// Publish replaces the settings wholesale with a new version. The blocked
// set is copied; a nil Until becomes the zero time (blocked until cleared).
func (h *Handle) Publish(params domain.RiskParameters, blocked []*domain.BlockedSymbol, at time.Time) *Settings {
	m := make(map[string]time.Time, len(blocked))
	for _, b := range blocked {
		if b == nil || b.Symbol == "" {
			continue
		}
		var until time.Time
		if b.Until != nil {
			until = *b.Until
		}
		m[b.Symbol] = until
	}

	next := &Settings{
		Version:   h.version.Add(1),
		UpdatedAt: at,
		Params:    params,
		blocked:   m,
	}
	h.current.Store(next)
	return next
}
