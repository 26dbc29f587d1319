package epoch

import (
	"fmt"
	"sync"
	"time"
)

// Source exposes the monotonic epoch counter and wall clock consumed by the
// protocol engines. Implementations must never report a smaller epoch than a
// previous call.
type Source interface {
	Epoch() uint64
	Now() time.Time
}

// Config describes how wall-clock time maps onto epochs.
type Config struct {
	// Genesis is the instant epoch zero starts.
	Genesis time.Time
	// Length is the duration of a single epoch. The value must be greater
	// than zero.
	Length time.Duration
}

// DefaultConfig returns a two-day epoch starting at the Unix epoch.
func DefaultConfig() Config {
	return Config{
		Genesis: time.Unix(0, 0).UTC(),
		Length:  48 * time.Hour,
	}
}

// Validate ensures the configuration is self-consistent.
func (c Config) Validate() error {
	if c.Length <= 0 {
		return fmt.Errorf("epoch length must be greater than zero")
	}
	return nil
}

// Wall derives epochs from the system clock. It remembers the highest epoch it
// has reported so a clock step backwards cannot rewind the counter.
type Wall struct {
	cfg   Config
	nowFn func() time.Time

	mu   sync.Mutex
	last uint64
}

// NewWall constructs a wall-clock epoch source. A nil nowFn defaults to
// time.Now.
func NewWall(cfg Config, nowFn func() time.Time) (*Wall, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Wall{cfg: cfg, nowFn: nowFn}, nil
}

// Now returns the current wall-clock time.
func (w *Wall) Now() time.Time {
	return w.nowFn()
}

// Epoch returns the current epoch.
func (w *Wall) Epoch() uint64 {
	elapsed := w.nowFn().Sub(w.cfg.Genesis)
	var current uint64
	if elapsed > 0 {
		current = uint64(elapsed / w.cfg.Length)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if current > w.last {
		w.last = current
	}
	return w.last
}

// Manual is a host-driven epoch source, used by tests and by embedders that
// advance epochs from their own consensus.
type Manual struct {
	mu    sync.RWMutex
	epoch uint64
	now   time.Time
}

// NewManual returns a manual source positioned at the supplied epoch.
func NewManual(epoch uint64, now time.Time) *Manual {
	return &Manual{epoch: epoch, now: now}
}

// Epoch returns the current epoch.
func (m *Manual) Epoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// Now returns the configured wall-clock time.
func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Advance moves the source forward by the supplied number of epochs.
func (m *Manual) Advance(epochs uint64, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch += epochs
	m.now = m.now.Add(elapsed)
}
