package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/route"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

const (
	// jitterSpan is the full width of the positional noise on each axis.
	jitterSpan = 0.0001

	// routeMinutes is the ETA reported at the start of a route.
	routeMinutes = 30

	pausedETA = "???"

	closeReason = "simulation stopped"

	// MinTickInterval is the shortest period between two ticks.
	MinTickInterval = time.Millisecond
)

// record is the simulation state of one driver.
type record struct {
	driverID string
	route    model.Route
	index    int
	step     int
	paused   bool
	status   model.DriverLocationStatus
}

// DriverState is a read-only view of a driver's simulation record.
type DriverState struct {
	DriverID    string
	Index       int
	Step        int
	Paused      bool
	Status      model.DriverLocationStatus
	RouteLength int
}

// Engine moves simulated drivers along generated routes and emits a
// telemetry sample per driver on every tick.
type Engine struct {
	clock    clock.WithTicker
	rnd      *rand.Rand
	gen      *route.Generator
	interval time.Duration
	steps    int
	start    model.Coordinate
	logger   log.Logger

	events *protocol.Emitter

	// emitMu orders a tick's samples against the open and close events of
	// Start and Stop. It is taken before mu.
	emitMu sync.Mutex

	mu      sync.Mutex
	records map[string]*record
	order   []string
	running bool
	stopCh  chan struct{}
	// generation identifies the current run so a late tick from a stopped
	// loop is discarded.
	generation int
}

// NewEngine creates an idle engine over drivers. Initial drivers start en
// route and keep their pause flag.
func NewEngine(drivers []model.Driver, opts ...Option) *Engine {
	e := &Engine{
		clock:    clock.RealClock{},
		interval: DefaultUpdateInterval,
		steps:    DefaultInterpolationSteps,
		start:    DefaultStart,
		logger:   log.WithName("simulation"),
		events:   protocol.NewEmitter(),
		records:  make(map[string]*record),
	}
	for _, o := range opts {
		o(e)
	}
	if e.TickInterval() < MinTickInterval {
		e.logger.Warn("Update interval too short for interpolation steps, clamping",
			"updateInterval", e.interval, "steps", e.steps, "tickInterval", MinTickInterval)
		e.interval = MinTickInterval * time.Duration(e.steps)
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.gen == nil {
		e.gen = route.NewGenerator(route.WithRand(rand.New(rand.NewSource(e.rnd.Int63()))))
	}

	for _, d := range drivers {
		e.addRecord(d, model.DriverStatusEnRoute)
	}
	return e
}

// TickInterval is the period between two ticks.
func (e *Engine) TickInterval() time.Duration {
	return e.interval / time.Duration(e.steps)
}

// Subscribe registers h for open, message and close events.
func (e *Engine) Subscribe(h protocol.Handler) (cancel func()) {
	return e.events.Subscribe(h)
}

// Start begins ticking. It emits an open event before the first tick and
// does nothing if the engine is already running.
func (e *Engine) Start() {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.generation++
	gen := e.generation
	stopCh := make(chan struct{})
	e.stopCh = stopCh
	ticker := e.clock.NewTicker(e.TickInterval())
	e.mu.Unlock()

	e.logger.Info("Simulation started", "drivers", e.Len(), "tickInterval", e.TickInterval())
	e.events.Emit(protocol.OpenEvent())

	go e.loop(gen, ticker, stopCh)
}

func (e *Engine) loop(gen int, ticker clock.Ticker, stopCh <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C():
			e.tick(gen)
		}
	}
}

// Stop halts ticking and emits a clean close event. It does nothing if the
// engine is not running.
func (e *Engine) Stop() {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.stopCh = nil
	e.mu.Unlock()

	e.logger.Info("Simulation stopped")
	e.events.Emit(protocol.CloseEvent(protocol.CloseNormal, closeReason, true))
}

// Close stops the engine and releases its subscribers and drivers.
func (e *Engine) Close() {
	e.Stop()
	e.events.Reset()

	e.mu.Lock()
	e.records = make(map[string]*record)
	e.order = nil
	e.mu.Unlock()
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Len returns the number of simulated drivers.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

// AddDriver registers a driver with a fresh route. Drivers added this way
// start idle. Adding a known driver does nothing.
func (e *Engine) AddDriver(d model.Driver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addRecord(d, model.DriverStatusIdle)
}

func (e *Engine) addRecord(d model.Driver, status model.DriverLocationStatus) {
	if _, ok := e.records[d.ID]; ok {
		return
	}
	e.records[d.ID] = &record{
		driverID: d.ID,
		route:    e.gen.Generate(e.start),
		paused:   d.IsPaused,
		status:   status,
	}
	e.order = append(e.order, d.ID)
}

// RemoveDriver drops a driver's record. Unknown ids are ignored.
func (e *Engine) RemoveDriver(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.records[id]; !ok {
		return
	}
	delete(e.records, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i:i], e.order[i+1:]...)
			break
		}
	}
}

// State returns the simulation state of a driver.
func (e *Engine) State(id string) (DriverState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.records[id]
	if !ok {
		return DriverState{}, false
	}
	return DriverState{
		DriverID:    r.driverID,
		Index:       r.index,
		Step:        r.step,
		Paused:      r.paused,
		Status:      r.status,
		RouteLength: len(r.route),
	}, true
}

// Tick advances every driver by one interpolation step and emits the
// resulting samples. It is called by the tick loop and may be called
// directly to step a stopped engine.
func (e *Engine) Tick() {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	samples := e.advance()
	e.mu.Unlock()

	e.publish(samples)
}

func (e *Engine) tick(gen int) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	if !e.running || e.generation != gen {
		e.mu.Unlock()
		return
	}
	samples := e.advance()
	e.mu.Unlock()

	e.publish(samples)
}

// advance must be called with mu held.
func (e *Engine) advance() []model.DriverLocation {
	now := e.clock.Now()
	samples := make([]model.DriverLocation, 0, len(e.order))

	for _, id := range e.order {
		r := e.records[id]
		if len(r.route) == 0 {
			continue
		}

		if r.paused {
			pos := e.jitter(r.route[r.index])
			samples = append(samples, model.DriverLocation{
				DriverID:  r.driverID,
				Latitude:  pos.Latitude,
				Longitude: pos.Longitude,
				Status:    model.DriverStatusPaused,
				ETA:       pausedETA,
				Timestamp: now,
			})
			continue
		}

		n := len(r.route)
		factor := float64(r.step) / float64(e.steps)
		pos := e.jitter(route.Lerp(r.route[r.index], r.route[(r.index+1)%n], factor))
		progress := (float64(r.index) + factor) / float64(n)

		samples = append(samples, model.DriverLocation{
			DriverID:  r.driverID,
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Status:    statusForProgress(progress),
			ETA:       eta(progress),
			Timestamp: now,
		})

		r.step++
		if r.step >= e.steps {
			r.step = 0
			r.index = (r.index + 1) % n
		}
	}
	return samples
}

func (e *Engine) publish(samples []model.DriverLocation) {
	for _, s := range samples {
		e.events.Emit(protocol.MessageEvent(s))
	}
}

func (e *Engine) jitter(c model.Coordinate) model.Coordinate {
	return model.Coordinate{
		Latitude:  c.Latitude + (e.rnd.Float64()-0.5)*jitterSpan,
		Longitude: c.Longitude + (e.rnd.Float64()-0.5)*jitterSpan,
	}
}

func statusForProgress(p float64) model.DriverLocationStatus {
	switch {
	case p < 0.2:
		return model.DriverStatusEnRoute
	case p < 0.8:
		return model.DriverStatusDelivering
	default:
		return model.DriverStatusReturning
	}
}

func eta(progress float64) string {
	return fmt.Sprintf("%d min", int(math.Ceil((1-progress)*routeMinutes)))
}
