package audio

import (
	"context"
	"testing"
)

func TestNullDevices(t *testing.T) {
	var devices Devices = NullDevices{}

	mic, err := devices.OpenMicrophone(16000, func([]byte) {
		t.Fatal("null microphone must not deliver frames")
	})
	if err != nil {
		t.Fatalf("OpenMicrophone err: %v", err)
	}
	if err := mic.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	spk, err := devices.OpenSpeaker(16000)
	if err != nil {
		t.Fatalf("OpenSpeaker err: %v", err)
	}
	spk.Write([]byte{1, 2})
	spk.SetVolume(0.3)
	spk.Flush()
	if err := spk.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	if err := (NullDevices{}).Probe(context.Background()); err != nil {
		t.Fatalf("Probe err: %v", err)
	}
}

func TestMicProberHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (MicProber{}).Probe(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
