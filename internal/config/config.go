// Package config provides centralized configuration for the model
// repository tools: built-in defaults, then an optional TOML file, then
// MODELREPO_* environment variables.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/repo"
	"github.com/kurobon/modelrepo/internal/vcs"
)

// EnvPrefix prefixes every environment variable read by this package.
const EnvPrefix = "MODELREPO_"

// Config holds application-wide configuration.
type Config struct {
	// RepositoryFolder is where model repositories are created and looked
	// up by name.
	RepositoryFolder string `toml:"repository_folder"`
	// Remote is the remote used for branch status, fetch and push.
	Remote string `toml:"remote"`
	// Ignore lists gitignore-style patterns for files that are not model
	// content.
	Ignore        []string `toml:"ignore"`
	LogLevel      string   `toml:"log_level"`
	Listen        string   `toml:"listen"`
	WatchDebounce Duration `toml:"watch_debounce"`

	User User `toml:"user"`
	Auth Auth `toml:"auth"`
}

// User signs commits.
type User struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Auth holds HTTP basic credentials for the remote.
type Auth struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Duration is a time.Duration written as "500ms" or "2s" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// DefaultRepositoryFolder is ~/.modelrepo, or .modelrepo in the working
// directory when there is no home directory.
func DefaultRepositoryFolder() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".modelrepo"
	}
	return filepath.Join(home, ".modelrepo")
}

func defaults() *Config {
	return &Config{
		RepositoryFolder: DefaultRepositoryFolder(),
		Remote:           repo.DefaultRemote,
		LogLevel:         "info",
		Listen:           ":8080",
		WatchDebounce:    Duration(300 * time.Millisecond),
	}
}

// DefaultConfig returns the default configuration, reading from environment
// variables.
func DefaultConfig() *Config {
	c := defaults()
	c.applyEnv(os.LookupEnv)
	c.resolveRepositoryFolder()
	return c
}

// Load reads the TOML file at path over the defaults and applies the
// environment on top. A missing file is not an error. An empty path uses
// $MODELREPO_CONFIG when set.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	c := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := c.parse(data); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}
	c.applyEnv(os.LookupEnv)
	c.resolveRepositoryFolder()
	return c, nil
}

func (c *Config) parse(data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(c)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("REPOSITORY_FOLDER", &c.RepositoryFolder)
	str("REMOTE", &c.Remote)
	str("LOG_LEVEL", &c.LogLevel)
	str("LISTEN", &c.Listen)
	str("USER_NAME", &c.User.Name)
	str("USER_EMAIL", &c.User.Email)
	str("AUTH_USERNAME", &c.Auth.Username)
	str("AUTH_PASSWORD", &c.Auth.Password)

	if v, ok := lookup(EnvPrefix + "IGNORE"); ok && v != "" {
		c.Ignore = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Ignore = append(c.Ignore, p)
			}
		}
	}
	if v, ok := lookup(EnvPrefix + "WATCH_DEBOUNCE"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.WatchDebounce = Duration(d)
		}
	}
}

// UserRepositoryFolder is the folder repositories are created in and looked
// up by name. Load and DefaultConfig have already replaced an unusable
// RepositoryFolder with the default one.
func (c *Config) UserRepositoryFolder() string {
	if c.RepositoryFolder == "" {
		return DefaultRepositoryFolder()
	}
	return c.RepositoryFolder
}

// resolveRepositoryFolder keeps a configured RepositoryFolder when it can be
// created and written to, and falls back to the default folder otherwise.
func (c *Config) resolveRepositoryFolder() {
	def := DefaultRepositoryFolder()
	if c.RepositoryFolder == "" || c.RepositoryFolder == def {
		c.RepositoryFolder = def
		return
	}
	if !writable(c.RepositoryFolder) {
		log.Warn().Str("folder", c.RepositoryFolder).Str("fallback", def).Msg("repository folder is not writable")
		c.RepositoryFolder = def
	}
}

func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".write-check-")
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(f.Name())
	return true
}

// RepositoryPath resolves a repository given by name or path. Bare names
// live under the user repository folder.
func (c *Config) RepositoryPath(nameOrPath string) string {
	if filepath.IsAbs(nameOrPath) || strings.ContainsRune(nameOrPath, filepath.Separator) || nameOrPath == "." {
		return nameOrPath
	}
	return filepath.Join(c.UserRepositoryFolder(), nameOrPath)
}

// Author is the commit signature.
func (c *Config) Author() vcs.Author {
	return vcs.Author{Name: c.User.Name, Email: c.User.Email}
}

// AuthMethod returns basic auth for the remote, or nil when no username is
// configured.
func (c *Config) AuthMethod() transport.AuthMethod {
	if c.Auth.Username == "" {
		return nil
	}
	return &http.BasicAuth{Username: c.Auth.Username, Password: c.Auth.Password}
}

// RepoOptions are the options for opening repositories with this
// configuration.
func (c *Config) RepoOptions() repo.Options {
	return repo.Options{
		Remote: c.Remote,
		Auth:   c.AuthMethod(),
		Ignore: grafico.NewMatcher(c.Ignore),
	}
}

// Level is the zerolog level named by LogLevel, info when it is not valid.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
