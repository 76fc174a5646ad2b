// Package config loads engine configuration from TOML with environment
// overrides, maps files to language servers, and supports live reload
// through a file watcher.
package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	shellquote "github.com/kballard/go-shellquote"
	toml "github.com/pelletier/go-toml/v2"
)

// ErrNoServer indicates no configured server covers a language.
var ErrNoServer = errors.New("no server configured for language")

// Config is the engine configuration.
type Config struct {
	// LogLevel is the minimum log level: debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// LogJSON switches log output from console to JSON encoding.
	LogJSON bool `toml:"log_json"`

	// Servers maps a server name to its definition.
	Servers map[string]ServerConfig `toml:"servers"`
}

// ServerConfig describes one language server.
type ServerConfig struct {
	// Command is the full launch command line, shell-quoted.
	Command string `toml:"command"`
	// Languages are the language ids this server handles.
	Languages []string `toml:"languages"`
	// RootPath overrides the project root sent at initialization.
	RootPath string `toml:"root"`
	// Folders seeds the workspace folder set.
	Folders []string `toml:"folders"`
	// Env is extra environment (KEY=VALUE) for the server process.
	Env []string `toml:"env"`
	// InitOptions are merged into the initialize payload; dotted keys
	// address nested members.
	InitOptions map[string]any `toml:"init_options"`
	// SyncInit makes startup block until initialization completes.
	SyncInit bool `toml:"sync_init"`
}

// SplitCommand parses the shell-quoted command line into executable and
// arguments.
func (s ServerConfig) SplitCommand() (string, []string, error) {
	words, err := shellquote.Split(s.Command)
	if err != nil {
		return "", nil, errors.Wrapf(err, "command %q", s.Command)
	}
	if len(words) == 0 {
		return "", nil, errors.New("empty command")
	}
	return words[0], words[1:], nil
}

// Default returns the built-in configuration: common servers for the
// languages they conventionally serve.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Servers: map[string]ServerConfig{
			"gopls": {
				Command:   "gopls serve",
				Languages: []string{"go", "gomod"},
			},
			"rust-analyzer": {
				Command:   "rust-analyzer",
				Languages: []string{"rust"},
			},
			"typescript": {
				Command:   "typescript-language-server --stdio",
				Languages: []string{"typescript", "typescriptreact", "javascript", "javascriptreact"},
			},
			"pyright": {
				Command:   "pyright-langserver --stdio",
				Languages: []string{"python"},
			},
			"clangd": {
				Command:   "clangd",
				Languages: []string{"c", "cpp"},
			},
		},
	}
}

// Load reads a TOML file over the defaults and applies environment
// overrides. A missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, errors.Wrapf(err, "read %s", path)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers LSPCORE_* environment variables over the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("LSPCORE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LSPCORE_LOG_JSON"); v != "" {
		c.LogJSON = v == "1" || strings.EqualFold(v, "true")
	}
}

// validate rejects definitions the engine cannot launch.
func (c *Config) validate() error {
	for name, srv := range c.Servers {
		if strings.TrimSpace(srv.Command) == "" {
			return errors.Newf("server %q has no command", name)
		}
		if _, _, err := srv.SplitCommand(); err != nil {
			return errors.Wrapf(err, "server %q", name)
		}
		if len(srv.Languages) == 0 {
			return errors.Newf("server %q declares no languages", name)
		}
	}
	return nil
}

// ServerForLanguage finds the server definition covering a language id.
func (c *Config) ServerForLanguage(languageID string) (string, ServerConfig, error) {
	for name, srv := range c.Servers {
		for _, lang := range srv.Languages {
			if lang == languageID {
				return name, srv, nil
			}
		}
	}
	return "", ServerConfig{}, errors.Mark(errors.Newf("%s", languageID), ErrNoServer)
}

// ServerForFile finds the server definition covering a file path by its
// detected language id.
func (c *Config) ServerForFile(path string) (string, ServerConfig, error) {
	lang := LanguageID(path)
	if lang == "" {
		return "", ServerConfig{}, errors.Mark(errors.Newf("unknown file type %s", path), ErrNoServer)
	}
	return c.ServerForLanguage(lang)
}
