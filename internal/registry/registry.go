// Package registry holds the live set of listener streams and the last value
// reported by each sender stream. Every mutation recomputes the average and
// fans it out to listeners inside the same critical section, so a listener
// never sees an average older than the event that triggered it.
package registry

import (
	"errors"
	"log"
	"math/big"
	"sync"

	"github.com/avgrelay/relay/internal/metrics"
	"github.com/google/uuid"
)

// ErrMalformedValue is returned by ParseValue for anything that is not a
// base-10 integer literal.
var ErrMalformedValue = errors.New("malformed sender value")

// Listener is a stream registered to receive broadcasts.
//
// Enqueue hands one encoded average to the listener and must not block. A
// non-nil error means the listener cannot take the message and is dropped.
// Close is called exactly once, when the listener leaves the registry.
type Listener interface {
	Enqueue(msg []byte) error
	Close()
}

type Registry struct {
	mu        sync.Mutex
	listeners map[Listener]struct{}
	values    map[uuid.UUID]*big.Int
	metrics   *metrics.RelayMetrics
}

// New creates an empty registry. m may be nil.
func New(m *metrics.RelayMetrics) *Registry {
	return &Registry{
		listeners: make(map[Listener]struct{}),
		values:    make(map[uuid.UUID]*big.Int),
		metrics:   m,
	}
}

func (r *Registry) RegisterListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[l] = struct{}{}
	r.updatePopulation()
}

// DeregisterListener removes l and closes it. Calling it for a listener that
// is not registered does nothing.
func (r *Registry) DeregisterListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeListener(l)
}

// DropListener is DeregisterListener for a listener whose stream failed
// mid-delivery. The drop is counted only if l was still registered.
func (r *Registry) DropListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removeListener(l) {
		r.metrics.ListenerDropped()
	}
}

// SetSenderValue records value for sender id. Values have no magnitude
// limit; the registry keeps its own copy.
func (r *Registry) SetSenderValue(id uuid.UUID, value *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[id] = new(big.Int).Set(value)
	r.updatePopulation()
}

func (r *Registry) RemoveSender(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, id)
	r.updatePopulation()
}

// Average returns the mean of all sender values truncated toward zero, or 0
// when no sender has reported.
func (r *Registry) Average() *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.average()
}

// Broadcast sends the current average to every listener.
func (r *Registry) Broadcast() *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcast()
}

// Report records value for sender id and broadcasts the new average. It
// returns the average that was broadcast.
func (r *Registry) Report(id uuid.UUID, value *big.Int) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[id] = new(big.Int).Set(value)
	r.updatePopulation()
	return r.broadcast()
}

// Retire removes sender id, if present, and broadcasts the new average.
func (r *Registry) Retire(id uuid.UUID) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, id)
	r.updatePopulation()
	return r.broadcast()
}

func (r *Registry) ListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

func (r *Registry) SenderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Value returns a copy of the last value recorded for sender id.
func (r *Registry) Value(id uuid.UUID) (*big.Int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[id]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// Must be called with mu held.
func (r *Registry) broadcast() *big.Int {
	avg := r.average()
	r.metrics.ObserveBroadcast(avg)
	if len(r.listeners) == 0 {
		return avg
	}

	msg := []byte(FormatAverage(avg))
	for l := range r.listeners {
		if err := l.Enqueue(msg); err != nil {
			log.Printf("registry: dropping listener: %v", err)
			r.metrics.ListenerDropped()
			r.removeListener(l)
		}
	}
	return avg
}

// removeListener reports whether l was registered.
func (r *Registry) removeListener(l Listener) bool {
	if _, ok := r.listeners[l]; !ok {
		return false
	}
	delete(r.listeners, l)
	l.Close()
	r.updatePopulation()
	return true
}

func (r *Registry) updatePopulation() {
	r.metrics.SetPopulation(len(r.listeners), len(r.values))
}

func (r *Registry) average() *big.Int {
	sum := new(big.Int)
	if len(r.values) == 0 {
		return sum
	}
	for _, v := range r.values {
		sum.Add(sum, v)
	}
	// Quo truncates toward zero.
	return sum.Quo(sum, big.NewInt(int64(len(r.values))))
}

// FormatAverage renders an average in its wire form.
func FormatAverage(avg *big.Int) string {
	return avg.String()
}

// ParseValue parses a sender message as a base-10 signed integer of any
// magnitude. On failure it returns nil and ErrMalformedValue.
func ParseValue(data []byte) (*big.Int, error) {
	v, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return nil, ErrMalformedValue
	}
	return v, nil
}
