// Package app assembles the credential store, permission gate, vendor
// transport, session adapter, transcript log and shell into one graph
// shared by the HTTP server and the terminal UI.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/hopewhisperer/hope-whisperer/internal/audio"
	"github.com/hopewhisperer/hope-whisperer/internal/config"
	"github.com/hopewhisperer/hope-whisperer/internal/credential"
	"github.com/hopewhisperer/hope-whisperer/internal/permission"
	"github.com/hopewhisperer/hope-whisperer/internal/service/chat"
	"github.com/hopewhisperer/hope-whisperer/internal/service/convai"
	"github.com/hopewhisperer/hope-whisperer/internal/service/session"
	"github.com/hopewhisperer/hope-whisperer/internal/shell"
)

// App owns every long-lived component.
type App struct {
	Shell       *shell.Shell
	Adapter     *session.Adapter
	Transcripts *chat.Service

	closeStore func()
}

// New builds the graph from cfg. The caller must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, closeStore, err := credential.Open(ctx, cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	var (
		devices audio.Devices
		prober  permission.Prober
	)
	if cfg.Audio.Enabled {
		devices = audio.NewLocalDevices()
		prober = audio.MicProber{}
	} else {
		log.Println("[app] audio disabled, using silent devices")
		devices = audio.NullDevices{}
		prober = audio.NullDevices{}
	}

	transport := convai.NewClient(convai.Config{
		APIBase:          cfg.Vendor.APIBase,
		WSBase:           cfg.Vendor.WSBase,
		InputSampleRate:  cfg.Audio.InputSampleRate,
		OutputSampleRate: cfg.Audio.OutputSampleRate,
		Connection: convai.ConnectionOptions{
			HandshakeTimeout: cfg.Session.HandshakeTimeout,
		},
	}, devices)

	gate := permission.NewGate(prober)
	adapter := session.NewAdapter(transport, gate)
	transcripts := chat.NewService()

	return &App{
		Shell:       shell.New(store, gate, adapter, transcripts, cfg.Session.DefaultVolume),
		Adapter:     adapter,
		Transcripts: transcripts,
		closeStore:  closeStore,
	}, nil
}

// Start loads initial state and begins mirroring session events. The
// loops stop when ctx is done.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Adapter.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[app] adapter loop stopped: %v", err)
		}
	}()
	go func() {
		if err := a.Shell.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[app] shell loop stopped: %v", err)
		}
	}()
	a.Shell.Init(ctx)
}

// Close ends any live session and releases the credential store.
func (a *App) Close(ctx context.Context) {
	a.Shell.EndConversation(ctx)
	a.closeStore()
}
