package route

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
)

const (
	DefaultMinScale = 0.004
	DefaultMaxScale = 0.01

	minStops = 2
	maxStops = 5

	minRadius = 0.1
	maxRadius = 1.0

	// maxAngle bounds the random stop angle in radians.
	maxAngle = 10.0

	// latitudeFactor compresses the north-south spread of a route.
	latitudeFactor = 0.8
)

// Generator builds looping delivery routes around a start coordinate.
// It is safe for concurrent use.
type Generator struct {
	minScale float64
	maxScale float64

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Generator)

// WithRand sets the random source. Use a seeded source for reproducible routes.
func WithRand(rnd *rand.Rand) Option {
	return func(g *Generator) { g.rnd = rnd }
}

// WithScale sets the range the route size is drawn from, in degrees.
func WithScale(min, max float64) Option {
	return func(g *Generator) {
		g.minScale = min
		g.maxScale = max
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		minScale: DefaultMinScale,
		maxScale: DefaultMaxScale,
	}
	for _, o := range opts {
		o(g)
	}
	if g.rnd == nil {
		g.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if g.maxScale < g.minScale {
		g.minScale, g.maxScale = g.maxScale, g.minScale
	}
	return g
}

// Generate returns a route of pickup, 2 to 5 delivery stops and a return stop
// with a midpoint inserted between each consecutive pair. The route is not
// closed; callers wrap from the last point to the first.
func (g *Generator) Generate(start model.Coordinate) model.Route {
	g.mu.Lock()
	defer g.mu.Unlock()

	scale := g.minScale + g.rnd.Float64()*(g.maxScale-g.minScale)
	k := minStops + g.rnd.Intn(maxStops-minStops+1)

	angles := make([]float64, 0, k+2)
	angles = append(angles, 0)
	for i := 0; i < k+1; i++ {
		angles = append(angles, g.rnd.Float64()*maxAngle)
	}

	stops := make([]model.Coordinate, 0, len(angles))
	for _, a := range angles {
		radius := minRadius + g.rnd.Float64()*(maxRadius-minRadius)
		stops = append(stops, model.Coordinate{
			Longitude: start.Longitude + math.Cos(a)*scale*radius,
			Latitude:  start.Latitude + math.Sin(a)*scale*radius*latitudeFactor,
		})
	}

	return smooth(stops)
}

// MaxOffset returns the largest longitude and latitude distance any waypoint
// can have from the start coordinate.
func (g *Generator) MaxOffset() (lng, lat float64) {
	return g.maxScale * maxRadius, g.maxScale * maxRadius * latitudeFactor
}

func smooth(stops []model.Coordinate) model.Route {
	if len(stops) < 2 {
		return model.Route(stops)
	}
	out := make(model.Route, 0, 2*len(stops)-1)
	for i, s := range stops {
		if i > 0 {
			out = append(out, Midpoint(stops[i-1], s))
		}
		out = append(out, s)
	}
	return out
}

// Midpoint returns the arithmetic midpoint of a and b.
func Midpoint(a, b model.Coordinate) model.Coordinate {
	return Lerp(a, b, 0.5)
}

// Lerp interpolates linearly from a (factor 0) to b (factor 1).
func Lerp(a, b model.Coordinate, factor float64) model.Coordinate {
	return model.Coordinate{
		Latitude:  a.Latitude + (b.Latitude-a.Latitude)*factor,
		Longitude: a.Longitude + (b.Longitude-a.Longitude)*factor,
	}
}
