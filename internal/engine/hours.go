package engine

import (
	"fmt"
	"time"
)

// TradingHours gates new entries to a venue's session. Exits are never
// gated: open positions are managed on every tick.
type TradingHours interface {
	Open(t time.Time) bool
}

// AlwaysOpen is the 24/7 session used for crypto venues.
type AlwaysOpen struct{}

func (AlwaysOpen) Open(time.Time) bool { return true }

// USEquitySession admits entries only during the regular US equity
// session, 09:30-16:00 America/New_York on weekdays.
type USEquitySession struct {
	loc *time.Location
}

// NewUSEquitySession loads the exchange timezone.
func NewUSEquitySession() (*USEquitySession, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load exchange timezone: %w", err)
	}
	return &USEquitySession{loc: loc}, nil
}

func (s *USEquitySession) Open(t time.Time) bool {
	t = t.In(s.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= 9*60+30 && mins < 16*60
}

var (
	_ TradingHours = AlwaysOpen{}
	_ TradingHours = (*USEquitySession)(nil)
)
