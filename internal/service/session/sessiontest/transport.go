// Package sessiontest provides an in-memory session.Transport for tests of
// the layers above the adapter.
package sessiontest

import (
	"context"
	"sync"

	model "github.com/hopewhisperer/hope-whisperer/internal/model/session"
	"github.com/hopewhisperer/hope-whisperer/internal/service/session"
)

// Transport records calls and lets tests inject vendor events.
type Transport struct {
	mu       sync.Mutex
	starts   []session.StartOptions
	ends     int
	volumes  []float64
	startErr error

	events chan model.Event
}

var _ session.Transport = (*Transport)(nil)

func NewTransport() *Transport {
	return &Transport{events: make(chan model.Event, 64)}
}

// FailStarts makes every following StartSession return err.
func (t *Transport) FailStarts(err error) {
	t.mu.Lock()
	t.startErr = err
	t.mu.Unlock()
}

func (t *Transport) StartSession(_ context.Context, opts session.StartOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts = append(t.starts, opts)
	return t.startErr
}

func (t *Transport) EndSession(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ends++
	return nil
}

func (t *Transport) SetVolume(_ context.Context, volume float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volumes = append(t.volumes, volume)
	return nil
}

func (t *Transport) Events() <-chan model.Event { return t.events }

// Emit delivers an event for the most recently started session.
func (t *Transport) Emit(ev model.Event) {
	t.mu.Lock()
	if ev.SessionID == "" && len(t.starts) > 0 {
		ev.SessionID = t.starts[len(t.starts)-1].SessionID
	}
	t.mu.Unlock()
	t.events <- ev
}

// Starts returns the options of every StartSession call.
func (t *Transport) Starts() []session.StartOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]session.StartOptions(nil), t.starts...)
}

// Ends counts EndSession calls.
func (t *Transport) Ends() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ends
}

// Volumes returns every level passed to SetVolume.
func (t *Transport) Volumes() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]float64(nil), t.volumes...)
}
