package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"aibook/internal/model"
)

// Config is the application's configuration model.
// It captures the user identity, the agent roster, simulation pacing,
// provider credentials, and storage/serving addresses.
type Config struct {
	User       UserConfig       `yaml:"user"`
	Roster     []RosterEntry    `yaml:"roster"`
	Simulation SimulationConfig `yaml:"simulation"`
	Provider   ProviderConfig   `yaml:"provider"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
}

type UserConfig struct {
	Name string `yaml:"name"`
}

type RosterEntry struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Avatar      string   `yaml:"avatar"`
	Personality string   `yaml:"personality"`
	Interests   []string `yaml:"interests"`
}

type SimulationConfig struct {
	// Seconds between agent turns
	TickIntervalSeconds int `yaml:"tickIntervalSeconds"`
	// Ceiling on network-backed provider calls for the session
	APICallLimit int `yaml:"apiCallLimit"`
}

type ProviderConfig struct {
	// Gemini API key. If empty, read from env GEMINI_API_KEY
	APIKey     string `yaml:"apiKey"`
	TextModel  string `yaml:"textModel"`
	ImageModel string `yaml:"imageModel"`
	// Requests per second / burst for the network-backed provider
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type StorageConfig struct {
	// SQLite path for the session action journal; ":memory:" keeps it session-scoped
	JournalPath string `yaml:"journalPath"`
	// If set, write a zstd-compressed JSONL transcript of session activity here
	TranscriptDir string `yaml:"transcriptDir"`
}

type ServerConfig struct {
	ListenAddr  string `yaml:"listenAddr"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		User: UserConfig{Name: "Annas"},
		Simulation: SimulationConfig{
			TickIntervalSeconds: 8,
			APICallLimit:        50,
		},
		Provider: ProviderConfig{
			TextModel:  "gemini-2.5-flash",
			ImageModel: "imagen-3.0-generate-002",
			RPS:        1,
			Burst:      4,
		},
		Storage: StorageConfig{JournalPath: ":memory:"},
		Server:  ServerConfig{ListenAddr: ":8080"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = os.Getenv("METRICS_ADDR")
	}
	if v := os.Getenv("AIBOOK_API_CALL_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Simulation.APICallLimit = n
		}
	}
	if v := os.Getenv("AIBOOK_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Simulation.TickIntervalSeconds = n
		}
	}
}

// TickInterval returns the scheduler period, defaulting to 8s.
func (c Config) TickInterval() time.Duration {
	if c.Simulation.TickIntervalSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.Simulation.TickIntervalSeconds) * time.Second
}

// Characters returns the configured roster, falling back to the built-in one.
func (c Config) Characters() []model.Character {
	if len(c.Roster) == 0 {
		return model.DefaultRoster()
	}
	out := make([]model.Character, 0, len(c.Roster))
	for _, r := range c.Roster {
		out = append(out, model.Character{
			ID:          r.ID,
			Name:        r.Name,
			Avatar:      r.Avatar,
			Personality: r.Personality,
			Interests:   r.Interests,
		})
	}
	return out
}

// Load reads YAML config from path. The file is unmarshaled over Default(),
// so sections it omits keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
