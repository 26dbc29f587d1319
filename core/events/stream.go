package events

import (
	"context"
	"strconv"
	"sync"
)

const (
	defaultStreamHistory = 1024
	subscriberBuffer     = 32
)

// Record is a sequenced copy of a committed event.
type Record struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (r Record) clone() Record {
	out := r
	out.Attributes = copyAttributes(r.Attributes)
	return out
}

func copyAttributes(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Stream is an Emitter that sequences events, keeps a bounded history and
// fans them out to subscribers. Slow subscribers miss events instead of
// blocking the emitter.
type Stream struct {
	mu      sync.Mutex
	seq     uint64
	limit   int
	history []Record
	subs    map[uint64]chan Record
	nextID  uint64
	dropped uint64
}

// NewStream keeps up to history records for late subscribers.
func NewStream(history int) *Stream {
	if history <= 0 {
		history = defaultStreamHistory
	}
	return &Stream{limit: history, subs: make(map[uint64]chan Record)}
}

// Emit implements the Emitter interface.
func (s *Stream) Emit(evt Event) {
	if s == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	record := Record{
		Sequence:   s.seq,
		Cursor:     strconv.FormatUint(s.seq, 10),
		Type:       payload.Type,
		Attributes: copyAttributes(payload.Attributes),
	}
	s.history = append(s.history, record)
	if excess := len(s.history) - s.limit; excess > 0 {
		trimmed := make([]Record, s.limit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	for _, ch := range s.subs {
		select {
		case ch <- record.clone():
		default:
			s.dropped++
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber was
// full.
func (s *Stream) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Subscribe registers for events after cursor (a sequence number; empty means
// the retained history). The returned channel is closed by cancel or when ctx
// ends.
func (s *Stream) Subscribe(ctx context.Context, cursor string) (<-chan Record, func(), []Record) {
	var since uint64
	if parsed, err := strconv.ParseUint(cursor, 10, 64); err == nil {
		since = parsed
	}
	updates := make(chan Record, subscriberBuffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]Record, 0, len(s.history))
	for _, record := range s.history {
		if record.Sequence > since {
			backlog = append(backlog, record.clone())
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if ch, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

// Fanout forwards every event to each emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, dst := range f {
		if dst != nil {
			dst.Emit(evt)
		}
	}
}
