package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Runner  RunnerConfig  `yaml:"runner"`
	Monitor MonitorConfig `yaml:"monitor"`
	Store   StoreConfig   `yaml:"store"`
	Notify  NotifyConfig  `yaml:"notify"`
	Lint    LintConfig    `yaml:"lint"`
}

type RunnerConfig struct {
	Binary           string `yaml:"binary"`
	WorkDir          string `yaml:"workdir"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	StepPauseSeconds int    `yaml:"step_pause_seconds"`
}

func (r RunnerConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

func (r RunnerConfig) StepPause() time.Duration {
	return time.Duration(r.StepPauseSeconds) * time.Second
}

type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type StoreConfig struct {
	Path       string `yaml:"path"`
	ReportsDir string `yaml:"reports_dir"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type LintConfig struct {
	RestrictedPatterns []string `yaml:"restricted_patterns"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return &Config{
		Runner: RunnerConfig{
			Binary:           filepath.Join(home, ".npm-global", "bin", "codex"),
			WorkDir:          cwd,
			TimeoutSeconds:   300,
			StepPauseSeconds: 2,
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Port:    5555,
		},
		Store: StoreConfig{
			Path:       filepath.Join(home, ".stepchain", "history.db"),
			ReportsDir: ".",
		},
		Lint: LintConfig{
			RestrictedPatterns: []string{
				`rm\s+-rf\s+/`,
				`mkfs`,
				`shutdown`,
				`reboot`,
			},
		},
	}
}

// Load reads a YAML config file, filling anything unset from Default.
// A missing file is not an error: the defaults apply as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Runner.TimeoutSeconds <= 0 {
		cfg.Runner.TimeoutSeconds = 300
	}
	if cfg.Runner.WorkDir == "" {
		cfg.Runner.WorkDir, _ = os.Getwd()
	}
	if cfg.Monitor.Port <= 0 {
		cfg.Monitor.Port = 5555
	}
	return cfg, nil
}
