// Package audio binds the local microphone and speaker.
package audio

import (
	"context"
	"io"
)

// Speaker plays 16-bit little-endian mono PCM.
type Speaker interface {
	Write(pcm []byte)
	// Flush drops queued audio, e.g. when the agent is interrupted.
	Flush()
	SetVolume(volume float64)
	Close() error
}

// Devices opens capture and playback streams.
type Devices interface {
	// OpenMicrophone delivers captured PCM frames to onFrame until closed.
	// onFrame owns the slice it receives.
	OpenMicrophone(sampleRate int, onFrame func(pcm []byte)) (io.Closer, error)
	OpenSpeaker(sampleRate int) (Speaker, error)
}

// NullDevices captures nothing and discards playback. Used when audio is
// disabled and by headless tools.
type NullDevices struct{}

func (NullDevices) OpenMicrophone(int, func([]byte)) (io.Closer, error) {
	return nopCloser{}, nil
}

func (NullDevices) OpenSpeaker(int) (Speaker, error) { return nullSpeaker{}, nil }

// Probe always succeeds: there is no device to be denied.
func (NullDevices) Probe(context.Context) error { return nil }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type nullSpeaker struct{}

func (nullSpeaker) Write([]byte)      {}
func (nullSpeaker) Flush()            {}
func (nullSpeaker) SetVolume(float64) {}
func (nullSpeaker) Close() error      { return nil }
