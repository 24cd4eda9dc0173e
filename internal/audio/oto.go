package audio

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// LocalDevices uses the default capture device (malgo) and the default
// output (oto). oto allows one context per process, so the first speaker
// fixes the output sample rate.
type LocalDevices struct {
	mu      sync.Mutex
	otoCtx  *oto.Context
	otoRate int
}

// NewLocalDevices returns devices backed by the system audio stack.
func NewLocalDevices() *LocalDevices {
	return &LocalDevices{}
}

func (d *LocalDevices) OpenMicrophone(sampleRate int, onFrame func([]byte)) (io.Closer, error) {
	return openMicrophone(sampleRate, onFrame)
}

func (d *LocalDevices) OpenSpeaker(sampleRate int) (Speaker, error) {
	ctx, err := d.context(sampleRate)
	if err != nil {
		return nil, err
	}
	s := &speaker{}
	s.cond = sync.NewCond(&s.mu)
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

func (d *LocalDevices) context(sampleRate int) (*oto.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.otoCtx != nil {
		if d.otoRate != sampleRate {
			return nil, fmt.Errorf("speaker already running at %d Hz, cannot switch to %d Hz", d.otoRate, sampleRate)
		}
		return d.otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	d.otoCtx = ctx
	d.otoRate = sampleRate
	log.Printf("[audio] speaker ready rate=%d", sampleRate)
	return ctx, nil
}

// speaker feeds a single long-lived oto player from an in-memory queue.
// Read blocks until audio is queued and reports EOF once closed.
type speaker struct {
	player *oto.Player

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func (s *speaker) Write(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buf = append(s.buf, pcm...)
	s.cond.Signal()
}

func (s *speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.mu.Unlock()
}

func (s *speaker) SetVolume(volume float64) {
	s.player.SetVolume(volume)
}

func (s *speaker) Close() error {
	s.mu.Lock()
	s.closed = true
	s.buf = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	s.player.Pause()
	return nil
}
