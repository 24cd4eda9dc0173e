package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/hopewhisperer/hope-whisperer/internal/app"
	"github.com/hopewhisperer/hope-whisperer/internal/config"
	"github.com/hopewhisperer/hope-whisperer/internal/tui"
)

type options struct {
	store          string
	credentialPath string
	agentID        string
	volume         float64
	logFile        string
	noAudio        bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("hope-whisperer", pflag.ContinueOnError)
	fs.StringVar(&opts.store, "store", "", "credential backend override: file, sqlite or memory")
	fs.StringVar(&opts.credentialPath, "credential-path", "", "credential file or database path")
	fs.StringVarP(&opts.agentID, "agent", "a", "", "ElevenLabs agent id to preselect")
	fs.Float64Var(&opts.volume, "volume", -1, "initial voice volume in [0,1]")
	fs.StringVar(&opts.logFile, "log", "hope-whisperer.log", "log file (the terminal is used by the UI)")
	fs.BoolVar(&opts.noAudio, "no-audio", false, "use silent audio devices")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch opts.store {
	case "", config.BackendFile, config.BackendSQLite, config.BackendMemory:
	default:
		return options{}, fmt.Errorf("invalid --store value %q", opts.store)
	}
	if fs.Changed("volume") && (opts.volume < 0 || opts.volume > 1) {
		return options{}, fmt.Errorf("invalid --volume value %v: must be within [0,1]", opts.volume)
	}
	return opts, nil
}

// apply layers flag overrides on top of the environment configuration.
func (o options) apply(cfg *config.Config) {
	if o.store != "" && o.store != cfg.Credential.Backend {
		cfg.Credential.Backend = o.store
		cfg.Credential.Path = ""
		if o.store != config.BackendMemory {
			cfg.Credential.Path = config.DefaultCredentialPath(o.store)
		}
	}
	if o.credentialPath != "" {
		cfg.Credential.Path = o.credentialPath
	}
	if o.volume >= 0 {
		cfg.Session.DefaultVolume = o.volume
	}
	if o.noAudio {
		cfg.Audio.Enabled = false
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logFile, err := tea.LogToFile(opts.logFile, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	opts.apply(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}
	application.Start(ctx)

	if opts.agentID != "" {
		if err := application.Shell.SetAgentID(opts.agentID); err != nil {
			log.Printf("[tui] preselect agent failed: %v", err)
		}
	}

	views, unsubscribe := application.Shell.Subscribe()
	program := tea.NewProgram(tui.NewModel(ctx, application.Shell, views), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()
	unsubscribe()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	application.Close(closeCtx)

	if runErr != nil && ctx.Err() == nil {
		log.Printf("[tui] program error: %v", runErr)
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
