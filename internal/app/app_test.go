package app

import (
	"context"
	"testing"
	"time"

	"github.com/hopewhisperer/hope-whisperer/internal/config"
	"github.com/hopewhisperer/hope-whisperer/internal/shell"
)

func testConfig() *config.Config {
	return &config.Config{
		Vendor:     config.VendorConfig{APIBase: "http://127.0.0.1:1", WSBase: "ws://127.0.0.1:1"},
		Credential: config.CredentialConfig{Backend: config.BackendMemory},
		Audio:      config.AudioConfig{Enabled: false, InputSampleRate: 16000, OutputSampleRate: 16000},
		Session:    config.SessionConfig{HandshakeTimeout: time.Second, DefaultVolume: 0.6},
	}
}

func TestNewBuildsWorkingShell(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, testConfig())
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	defer a.Close(context.Background())
	a.Start(ctx)

	v := a.Shell.View()
	if v.Mode != shell.ModeSetup || !v.PermissionGranted || v.Volume != 0.6 {
		t.Fatalf("unexpected initial view %+v", v)
	}

	if err := a.Shell.SubmitCredential(ctx, "abc123"); err != nil {
		t.Fatalf("SubmitCredential err: %v", err)
	}
	if a.Shell.View().Mode != shell.ModeConversation {
		t.Fatalf("expected conversation mode")
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Credential.Backend = "redis"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
