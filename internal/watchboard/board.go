// Package watchboard runs the pin set against successive world documents and
// fans fired alerts out to sinks.
package watchboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/telemetry"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

// Sink receives fired alerts and, when the tick advanced, one sample per pin.
type Sink interface {
	Emit(a watch.Alert) error
	Sample(pin watch.Pin, res watch.Result, day int64, hour int) error
}

type PinResult struct {
	Pin    watch.Pin
	Result watch.Result
}

type Board struct {
	log     zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	mu       sync.Mutex
	pins     []watch.Pin
	det      *watch.Detector
	state    *watch.State
	sinks    []Sink
	lastTick int64
}

func New(f File, log zerolog.Logger, metrics *telemetry.Metrics) *Board {
	return &Board{
		log:      log.With().Str("component", "watchboard").Logger(),
		metrics:  metrics,
		now:      time.Now,
		pins:     append([]watch.Pin(nil), f.Pins...),
		det:      f.Detector(),
		state:    watch.NewState(),
		lastTick: -1,
	}
}

func (b *Board) AddSink(s Sink) {
	if s == nil {
		return
	}
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// SetPins swaps the pin set. Baselines of pins whose path, mode or op changed
// are reset by the detector on the next update.
func (b *Board) SetPins(f File) {
	b.mu.Lock()
	b.pins = append([]watch.Pin(nil), f.Pins...)
	b.det = f.Detector()
	b.mu.Unlock()
}

func (b *Board) Pins() []watch.Pin {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]watch.Pin(nil), b.pins...)
}

// Restore installs a previously saved detector state.
func (b *Board) Restore(st *watch.State) {
	if st == nil {
		return
	}
	b.mu.Lock()
	b.state = st.Clone()
	b.lastTick = st.LastTick
	b.mu.Unlock()
}

// State returns a copy of the detector state for persistence.
func (b *Board) State() *watch.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Clone()
}

// EnsureSeqAfter advances the alert counter so new alerts sort after seq.
func (b *Board) EnsureSeqAfter(seq uint64) {
	if seq == 0 {
		return
	}
	n := (seq &^ watch.SeqBase) + 1
	b.mu.Lock()
	if b.state.NextSeq < n {
		b.state.NextSeq = n
	}
	b.mu.Unlock()
}

// Observe runs the detector over doc and delivers alerts and samples to the
// sinks. A different world id, or the clock moving backwards (an older save
// was loaded), starts every pin from a fresh baseline.
func (b *Board) Observe(ctx context.Context, doc any, day int64, hour int, worldID string) []watch.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	tick := watch.Tick(day, hour)
	prev := b.state.WorldID
	if (prev != "" && worldID != "" && worldID != prev) || (b.lastTick >= 0 && tick < b.lastTick) {
		b.log.Info().
			Str("world_id", worldID).
			Str("prev_world_id", prev).
			Int64("tick", tick).
			Int64("last_tick", b.lastTick).
			Msg("world changed; resetting baselines")
		b.state.Reset()
	}
	if worldID != "" {
		b.state.WorldID = worldID
	}
	advanced := tick != b.lastTick
	b.lastTick = tick

	alerts := b.det.Update(doc, b.pins, day, hour, b.now(), b.state)
	b.metrics.PinsEvaluated(ctx, len(b.pins))
	for _, a := range alerts {
		b.metrics.AlertFired(ctx, a.Level.String())
		b.log.Info().
			Uint64("pin_id", a.PinID).
			Str("level", a.Level.String()).
			Msg(a.Message)
		for _, s := range b.sinks {
			if err := s.Emit(a); err != nil {
				b.log.Warn().Err(err).Uint64("pin_id", a.PinID).Msg("sink emit failed")
			}
		}
	}

	if advanced && len(b.sinks) > 0 {
		for _, r := range b.evaluateLocked(doc, false) {
			for _, s := range b.sinks {
				if err := s.Sample(r.Pin, r.Result, day, hour); err != nil {
					b.log.Warn().Err(err).Uint64("pin_id", r.Pin.ID).Msg("sink sample failed")
				}
			}
		}
	}
	return alerts
}

// Evaluate computes every pin over doc without touching baselines.
func (b *Board) Evaluate(doc any) []PinResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evaluateLocked(doc, true)
}

func (b *Board) evaluateLocked(doc any, samples bool) []PinResult {
	opts := b.det.Eval
	opts.CollectSamples = samples
	out := make([]PinResult, 0, len(b.pins))
	for _, p := range b.pins {
		out = append(out, PinResult{Pin: p, Result: watch.Evaluate(doc, p, opts)})
	}
	return out
}
