package convai

import (
	"testing"
	"time"
)

func TestParsePCMRate(t *testing.T) {
	cases := []struct {
		format string
		rate   int
		ok     bool
	}{
		{"pcm_16000", 16000, true},
		{"PCM_44100", 44100, true},
		{"ulaw_8000", 0, false},
		{"pcm_", 0, false},
		{"pcm_-1", 0, false},
	}

	for _, tc := range cases {
		rate, ok := parsePCMRate(tc.format)
		if rate != tc.rate || ok != tc.ok {
			t.Fatalf("%s: expected (%d,%t), got (%d,%t)", tc.format, tc.rate, tc.ok, rate, ok)
		}
	}
}

func TestDecodeServerMessage(t *testing.T) {
	msg, err := decodeServerMessage([]byte(`{"type":"ping","ping_event":{"event_id":3,"ping_ms":40}}`))
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if msg.Ping == nil || msg.Ping.EventID != 3 {
		t.Fatalf("unexpected ping %+v", msg.Ping)
	}

	if _, err := decodeServerMessage([]byte(`{"ping_event":{}}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if _, err := decodeServerMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestPCMDuration(t *testing.T) {
	if d := pcmDuration(32000, 16000); d != time.Second {
		t.Fatalf("expected 1s, got %v", d)
	}
	if d := pcmDuration(320, 16000); d != 10*time.Millisecond {
		t.Fatalf("expected 10ms, got %v", d)
	}
	if d := pcmDuration(100, 0); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
}
