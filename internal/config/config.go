package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCols          = 80
	DefaultRows          = 24
	DefaultStopGrace     = 2 * time.Second
	DefaultMinimumUptime = 5 * time.Second
)

type Config struct {
	DataDir   string         `yaml:"data_dir"`
	LogLevel  string         `yaml:"log_level"`
	Shell     string         `yaml:"shell"`
	ScanPaths []string       `yaml:"scan_paths"`
	Agent     AgentConfig    `yaml:"agent"`
	Terminal  TerminalConfig `yaml:"terminal"`
	Preview   PreviewConfig  `yaml:"preview"`
	Web       WebConfig      `yaml:"web"`
}

// AgentConfig names the interactive CLI launched inside each worktree.
type AgentConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type TerminalConfig struct {
	Cols int `yaml:"cols"`
	Rows int `yaml:"rows"`
}

type PreviewConfig struct {
	StopGrace     time.Duration `yaml:"stop_grace"`
	MinimumUptime time.Duration `yaml:"minimum_uptime"`
}

type WebConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// LookPathFunc is the function signature for looking up executables.
type LookPathFunc func(name string) (string, error)

func DefaultConfig() Config {
	return Config{
		DataDir:  "~/.worktreehub",
		LogLevel: "info",
		Agent:    AgentConfig{Name: "codex"},
		Terminal: TerminalConfig{Cols: DefaultCols, Rows: DefaultRows},
		Preview: PreviewConfig{
			StopGrace:     DefaultStopGrace,
			MinimumUptime: DefaultMinimumUptime,
		},
		Web: WebConfig{Bind: "127.0.0.1"},
	}
}

func Load() (Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFromDir loads config.yaml from the given directory.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}

	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Agent.Name == "" {
		c.Agent.Name = def.Agent.Name
	}
	if c.Terminal.Cols <= 0 {
		c.Terminal.Cols = DefaultCols
	}
	if c.Terminal.Rows <= 0 {
		c.Terminal.Rows = DefaultRows
	}
	if c.Preview.StopGrace <= 0 {
		c.Preview.StopGrace = DefaultStopGrace
	}
	if c.Preview.MinimumUptime < 0 {
		c.Preview.MinimumUptime = DefaultMinimumUptime
	}
	if c.Web.Bind == "" {
		c.Web.Bind = def.Web.Bind
	}
}

// ResolvedDataDir returns the data directory with a leading ~ expanded.
func (c *Config) ResolvedDataDir() string {
	return ExpandHome(c.DataDir)
}

// ResolvedScanPaths returns the directories searched for repositories, with
// a leading ~ expanded.
func (c *Config) ResolvedScanPaths() []string {
	paths := make([]string, 0, len(c.ScanPaths))
	for _, p := range c.ScanPaths {
		paths = append(paths, ExpandHome(p))
	}
	return paths
}

// ResolvedShell returns the login shell used to wrap session commands.
func (c *Config) ResolvedShell() string {
	return c.ResolvedShellWith(exec.LookPath)
}

// ResolvedShellWith picks the configured shell, then $SHELL, then zsh, then sh.
func (c *Config) ResolvedShellWith(lookPath LookPathFunc) string {
	if c.Shell != "" {
		return c.Shell
	}
	if env := os.Getenv("SHELL"); env != "" {
		return env
	}
	if p, err := lookPath("zsh"); err == nil {
		return p
	}
	return "/bin/sh"
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Dir returns the default configuration directory.
func Dir() string {
	return filepath.Dir(getConfigPath())
}

func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "worktreehub", "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "worktreehub", "config.yaml")
	}

	return filepath.Join(home, ".config", "worktreehub", "config.yaml")
}
