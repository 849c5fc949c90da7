// Package config loads the vdocs application configuration from a YAML file
// with environment-variable overrides.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// EnvDataDir selects the data root when set, overriding the config file.
const EnvDataDir = "VDOCS_DATA_DIR"

// Config represents the application configuration.
type Config struct {
	// DataDir is the root of the on-disk layout ({data_root}/users/...).
	DataDir string `yaml:"data_dir"`

	Agent   AgentConfig   `yaml:"agent"`
	Server  ServerConfig  `yaml:"server"`
	Notify  NotifyConfig  `yaml:"notify"`
	Janitor JanitorConfig `yaml:"janitor"`
	Runner  RunnerConfig  `yaml:"runner"`
}

// AgentConfig configures the LLM provider boundary.
type AgentConfig struct {
	// Model names the generation model. API keys come from the environment,
	// never from the config file.
	Model string `yaml:"model,omitempty"`
	// StageTimeout bounds each pipeline stage; zero disables the timeout.
	StageTimeout time.Duration `yaml:"stage_timeout,omitempty"`
}

// ServerConfig configures the streaming HTTP/WebSocket server.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// NotifyConfig configures the optional NATS job-status publisher.
type NotifyConfig struct {
	// NATSURL enables publishing when non-empty.
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// JanitorConfig configures scheduled cleanup of terminal jobs and
// unreferenced blobs.
type JanitorConfig struct {
	Interval  time.Duration `yaml:"interval,omitempty"`
	JobMaxAge time.Duration `yaml:"job_max_age,omitempty"`
	// KeepVersions bounds retained snapshots when compaction runs.
	KeepVersions int `yaml:"keep_versions,omitempty"`
}

// RunnerConfig tunes the event bridge between the synchronous executor and
// its consumer.
type RunnerConfig struct {
	// QueueSize is the bounded event-channel capacity. The producer blocks
	// when the consumer falls behind.
	QueueSize int `yaml:"queue_size,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".vdocs"),
		Agent: AgentConfig{
			Model:        "gemini-2.0-flash",
			StageTimeout: 10 * time.Minute,
		},
		Server: ServerConfig{Addr: ":8460"},
		Notify: NotifyConfig{Subject: "vdocs.jobs"},
		Janitor: JanitorConfig{
			Interval:     6 * time.Hour,
			JobMaxAge:    7 * 24 * time.Hour,
			KeepVersions: 10,
		},
		Runner: RunnerConfig{QueueSize: 64},
	}
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. VDOCS_DATA_DIR overrides data_dir in either case.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304 - path comes from the CLI flag
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, vderrors.IOError("read config file", err).WithContext("path", path)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, vderrors.ValidationError("parse config file").
			WithContext("path", path).
			WithContext("cause", err.Error())
	}

	if env := os.Getenv(EnvDataDir); env != "" {
		cfg.DataDir = env
	}
	if cfg.DataDir == "" {
		return nil, vderrors.ValidationError("data_dir must be set (config file or " + EnvDataDir + ")")
	}
	if cfg.Runner.QueueSize <= 0 {
		cfg.Runner.QueueSize = Default().Runner.QueueSize
	}

	return cfg, nil
}

// UsersDir returns the directory that holds per-user subtrees.
func (c *Config) UsersDir() string {
	return filepath.Join(c.DataDir, "users")
}

// UserDir returns the isolated subtree for one user.
func (c *Config) UserDir(userID string) string {
	return filepath.Join(c.UsersDir(), userID)
}
