package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/promptvault/internal/remote"
	"github.com/starford/promptvault/internal/repository"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Remote backends.
const (
	BackendGitHub = "github"
	BackendMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Remote RemoteConfig      `yaml:"remote"`
	Branch BranchConfig      `yaml:"branch"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if err := c.Branch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RemoteConfig describes the repository prompts are stored in.
//
// With the github backend an empty Repo leaves the remote unconfigured: the
// server still starts, reads return nothing and writes fail with
// remote_unavailable.
type RemoteConfig struct {
	Backend          string        `yaml:"backend"`
	Repo             string        `yaml:"repo"`
	Token            string        `yaml:"token"`
	DefaultBranch    string        `yaml:"default_branch"`
	APIURL           string        `yaml:"api_url"`
	Root             string        `yaml:"root"`
	MetaFile         string        `yaml:"meta_file"`
	BodyFile         string        `yaml:"body_file"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	MaxVersions      int           `yaml:"max_versions"`
	FetchConcurrency int           `yaml:"fetch_concurrency"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendGitHub
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendGitHub, BackendMemory)),
		validation.Field(&c.Repo, validation.By(repoRule)),
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.MetaFile, validation.Required),
		validation.Field(&c.BodyFile, validation.Required),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxVersions, validation.Min(1), validation.Max(100)),
		validation.Field(&c.FetchConcurrency, validation.Min(1), validation.Max(64)),
	)
}

// Configured reports whether a backing repository is set.
func (c *RemoteConfig) Configured() bool {
	return c.Backend == BackendMemory || c.Repo != ""
}

// Layout returns the repository layout and limits.
func (c *RemoteConfig) Layout() repository.Config {
	return repository.Config{
		Root:             c.Root,
		MetaFile:         c.MetaFile,
		BodyFile:         c.BodyFile,
		MaxVersions:      c.MaxVersions,
		FetchConcurrency: c.FetchConcurrency,
	}
}

func repoRule(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, _, ok := remote.ParseRepo(s); !ok {
		return fmt.Errorf("must be in owner/name form")
	}
	return nil
}

// BranchConfig controls names of the single-use write branches.
type BranchConfig struct {
	Prefix string `yaml:"prefix"`
}

// Validate validates the branch configuration.
func (c *BranchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Prefix, validation.Required),
	)
}

// AuthConfig holds authentication configuration for write routes.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Remote: RemoteConfig{
			Backend:          BackendGitHub,
			DefaultBranch:    "main",
			Root:             repository.DefaultRoot,
			MetaFile:         repository.DefaultMetaFile,
			BodyFile:         repository.DefaultBodyFile,
			CacheTTL:         60 * time.Second,
			MaxVersions:      repository.DefaultMaxVersions,
			FetchConcurrency: repository.DefaultFetchConcurrency,
		},
		Branch: BranchConfig{
			Prefix: "feature/prompt/",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
