package simulation

import (
	"math/rand"
	"time"

	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/route"
)

const (
	DefaultUpdateInterval     = 5 * time.Second
	DefaultInterpolationSteps = 2
)

// DefaultStart is the coordinate routes are generated around when none is set.
var DefaultStart = model.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

type Option func(*Engine)

// WithClock sets the clock driving the tick loop.
func WithClock(c clock.WithTicker) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRand sets the random source used for jitter and, unless WithGenerator
// is given, for route generation.
func WithRand(rnd *rand.Rand) Option {
	return func(e *Engine) { e.rnd = rnd }
}

// WithUpdateInterval sets the time to travel one route segment.
func WithUpdateInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithInterpolationSteps sets the number of ticks per route segment.
func WithInterpolationSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.steps = n
		}
	}
}

// WithStart sets the coordinate routes are generated around.
func WithStart(c model.Coordinate) Option {
	return func(e *Engine) { e.start = c }
}

func WithGenerator(g *route.Generator) Option {
	return func(e *Engine) { e.gen = g }
}
