package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个应用的配置项。
type Config struct {
	Server     ServerConfig
	Vendor     VendorConfig
	Credential CredentialConfig
	Audio      AudioConfig
	Session    SessionConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	credential, err := loadCredentialConfig()
	if err != nil {
		return nil, err
	}

	audio, err := loadAudioConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		Vendor:     loadVendorConfig(),
		Credential: credential,
		Audio:      audio,
		Session:    session,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
	// AllowedOrigins 为空时不返回任何 CORS 头。
	AllowedOrigins map[string]struct{}
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

func parseOrigins(raw string) map[string]struct{} {
	origins := make(map[string]struct{})
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			origins[origin] = struct{}{}
		}
	}
	return origins
}

// VendorConfig points the conversation client at the ElevenLabs endpoints.
type VendorConfig struct {
	APIBase string
	WSBase  string
	// APIKey seeds headless tools; the interactive surfaces use the credential store.
	APIKey string
}

func loadVendorConfig() VendorConfig {
	return VendorConfig{
		APIBase: strings.TrimRight(getEnvOrDefault("ELEVENLABS_API_BASE", "https://api.elevenlabs.io"), "/"),
		WSBase:  strings.TrimRight(getEnvOrDefault("ELEVENLABS_WS_BASE", "wss://api.elevenlabs.io"), "/"),
		APIKey:  strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
	}
}

// Credential backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// CredentialConfig 描述 API Key 的本地持久化方式。
type CredentialConfig struct {
	Backend string
	Path    string
}

func loadCredentialConfig() (CredentialConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("CREDENTIAL_BACKEND", BackendFile))
	switch backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return CredentialConfig{}, fmt.Errorf("invalid CREDENTIAL_BACKEND value: %q", backend)
	}

	path := strings.TrimSpace(os.Getenv("CREDENTIAL_PATH"))
	if path == "" && backend != BackendMemory {
		path = DefaultCredentialPath(backend)
	}

	return CredentialConfig{Backend: backend, Path: path}, nil
}

// DefaultCredentialPath returns the per-user location for the given backend.
func DefaultCredentialPath(backend string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	name := "credentials.json"
	if backend == BackendSQLite {
		name = "credentials.db"
	}
	return filepath.Join(dir, "hope-whisperer", name)
}

// AudioConfig 描述本地麦克风与扬声器配置。
type AudioConfig struct {
	Enabled          bool
	InputSampleRate  int
	OutputSampleRate int
}

func loadAudioConfig() (AudioConfig, error) {
	enabled, err := parseBoolEnv("AUDIO_ENABLED", true)
	if err != nil {
		return AudioConfig{}, err
	}

	inputRate := 16000
	if override, err := parseOptionalIntEnv("AUDIO_INPUT_SAMPLE_RATE"); err != nil {
		return AudioConfig{}, err
	} else if override != nil {
		inputRate = *override
	}

	outputRate := 16000
	if override, err := parseOptionalIntEnv("AUDIO_OUTPUT_SAMPLE_RATE"); err != nil {
		return AudioConfig{}, err
	} else if override != nil {
		outputRate = *override
	}

	if inputRate <= 0 || outputRate <= 0 {
		return AudioConfig{}, fmt.Errorf("audio sample rates must be positive, got input=%d output=%d", inputRate, outputRate)
	}

	return AudioConfig{
		Enabled:          enabled,
		InputSampleRate:  inputRate,
		OutputSampleRate: outputRate,
	}, nil
}

// SessionConfig 描述语音会话的默认参数。
type SessionConfig struct {
	HandshakeTimeout time.Duration
	DefaultVolume    float64
}

func loadSessionConfig() (SessionConfig, error) {
	timeout, err := parseOptionalIntEnv("SESSION_HANDSHAKE_TIMEOUT")
	if err != nil {
		return SessionConfig{}, err
	}
	timeoutSeconds := 15 // 默认15秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	volume, err := parseOptionalFloatEnv("DEFAULT_VOLUME")
	if err != nil {
		return SessionConfig{}, err
	}
	defaultVolume := 0.8
	if volume != nil {
		if *volume < 0 || *volume > 1 {
			return SessionConfig{}, fmt.Errorf("invalid DEFAULT_VOLUME value %v: must be within [0,1]", *volume)
		}
		defaultVolume = *volume
	}

	return SessionConfig{
		HandshakeTimeout: time.Duration(timeoutSeconds) * time.Second,
		DefaultVolume:    defaultVolume,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
