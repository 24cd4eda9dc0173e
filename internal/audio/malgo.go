package audio

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/gen2brain/malgo"
)

const probeSampleRate = 16000

// MicProber checks microphone access by opening the default capture device
// and releasing it straight away.
type MicProber struct{}

// Probe acquires and releases the capture device. Any failure along the way
// counts as denied access.
func (MicProber) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	cfg := captureConfig(probeSampleRate)
	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, _ []byte, _ uint32) {},
	})
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return device.Stop()
}

func captureConfig(sampleRate int) malgo.DeviceConfig {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInMilliseconds = 20
	return cfg
}

type microphone struct {
	mctx   *malgo.AllocatedContext
	device *malgo.Device
}

func openMicrophone(sampleRate int, onFrame func([]byte)) (io.Closer, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{ThreadPriority: malgo.ThreadPriorityRealtime}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	device, err := malgo.InitDevice(mctx.Context, captureConfig(sampleRate), malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if len(input) == 0 {
				return
			}
			frame := make([]byte, len(input))
			copy(frame, input)
			onFrame(frame)
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("open capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	log.Printf("[audio] microphone open rate=%d", sampleRate)
	return &microphone{mctx: mctx, device: device}, nil
}

func (m *microphone) Close() error {
	err := m.device.Stop()
	m.device.Uninit()
	_ = m.mctx.Uninit()
	m.mctx.Free()
	return err
}
