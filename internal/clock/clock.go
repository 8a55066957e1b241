package clock

import (
	"time"

	"speakdrill/internal/ports"
)

// System is the wall clock.
type System struct{}

func (System) NewTicker(d time.Duration) ports.Ticker {
	return &ticker{t: time.NewTicker(d)}
}

func (System) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type ticker struct{ t *time.Ticker }

func (t *ticker) C() <-chan time.Time { return t.t.C }
func (t *ticker) Stop()               { t.t.Stop() }
