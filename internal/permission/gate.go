// Package permission tracks whether the local microphone may be used.
package permission

import (
	"context"
	"log"
	"sync"
)

// State is the outcome of a microphone probe.
type State string

const (
	Unknown State = "unknown"
	Granted State = "granted"
	Denied  State = "denied"
)

// Prober acquires an audio input handle and releases it before returning.
// Any error means access is denied.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Gate caches the last probe outcome. It is never persisted.
type Gate struct {
	prober Prober

	mu    sync.RWMutex
	state State
}

// NewGate returns a Gate in the Unknown state.
func NewGate(prober Prober) *Gate {
	return &Gate{prober: prober, state: Unknown}
}

// Check probes the microphone to establish the initial state.
func (g *Gate) Check(ctx context.Context) State {
	return g.probe(ctx, "check")
}

// Request re-probes on explicit user demand.
func (g *Gate) Request(ctx context.Context) State {
	return g.probe(ctx, "request")
}

// State returns the last known state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Granted reports whether the last probe succeeded.
func (g *Gate) Granted() bool {
	return g.State() == Granted
}

func (g *Gate) probe(ctx context.Context, reason string) State {
	state := Granted
	if err := g.prober.Probe(ctx); err != nil {
		log.Printf("[permission] microphone %s denied: %v", reason, err)
		state = Denied
	}

	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
	return state
}
