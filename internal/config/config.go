// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the daemon. Every field
// has a usable default; only API keys and the capture interface are
// genuinely optional.
type Config struct {
	// MCP/HTTP listener.
	ServerHost string
	ServerPort int

	// Storage.
	DBPath    string
	EventsDir string // JSONL audit trail; empty disables it
	VectorDir string // persistent vector index directory

	// Writer tuning.
	QueueCapacity int
	BatchSize     int
	BatchAge      time.Duration

	// Collector tuning.
	CaptureInterface string // empty means auto-pick the first up, non-loopback device
	CPUThreshold     float64
	MemThreshold     float64

	// Local LLM endpoint.
	OllamaBaseURL string
	LLMModel      string
	EmbedModel    string

	// Threat-intelligence keys/endpoints.
	VTAPIKey         string
	MalwareBazaarURL string
	URLHausURL       string
}

// Load reads .env (if present) and the process environment and returns
// the resolved configuration. A malformed numeric value is an error
// rather than a silent fallback.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		ServerHost:       getenv("SERVER_HOST", "127.0.0.1"),
		DBPath:           getenv("DB_PATH", "system_monitor.db"),
		EventsDir:        os.Getenv("EVENTS_DIR"),
		VectorDir:        getenv("CHROMA_DIR", "./vector_db"),
		CaptureInterface: os.Getenv("CAPTURE_IFACE"),
		OllamaBaseURL:    getenv("OLLAMA_BASE_URL", "http://127.0.0.1:11434"),
		LLMModel:         getenv("LLM_MODEL", "gemma3:4b"),
		EmbedModel:       getenv("EMBED_MODEL", "nomic-embed-text"),
		VTAPIKey:         os.Getenv("VT_API_KEY"),
		MalwareBazaarURL: getenv("MALWAREBAZAAR_URL", "https://mb-api.abuse.ch/api/v1/"),
		URLHausURL:       getenv("URLHAUS_URL", "https://urlhaus-api.abuse.ch/v1/payload/"),
		BatchAge:         3 * time.Second,
	}

	var err error
	if cfg.ServerPort, err = getenvInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.QueueCapacity, err = getenvInt("QUEUE_CAPACITY", 1000); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getenvInt("BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.CPUThreshold, err = getenvFloat("CPU_SPIKE_THRESHOLD", 40); err != nil {
		return nil, err
	}
	if cfg.MemThreshold, err = getenvFloat("MEM_SPIKE_THRESHOLD", 40); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListenAddr returns the host:port the MCP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer: %w", key, v, err)
	}
	return n, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a number: %w", key, v, err)
	}
	return f, nil
}
