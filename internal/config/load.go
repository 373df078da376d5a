package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpub/internal/errors"
)

var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands, normalizes and validates a configuration file.
// A .env file next to the working directory is loaded first (best effort) so
// secrets can be referenced as ${VAR} placeholders in the YAML.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("No .env file loaded", "error", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError("failed to read configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	expanded := expandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.ConfigError("failed to parse configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnv substitutes ${VAR} placeholders from the environment. Unset
// variables are left untouched so validation can point at them.
func expandEnv(s string) string {
	return envPlaceholder.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
}

func (c *Config) applyDefaults() {
	if c.Source.Ref == "" {
		c.Source.Ref = "main"
	}
	if c.Docs.URL == "" {
		c.Docs.URL = c.Source.URL
	}
	if c.Docs.Branch == "" {
		c.Docs.Branch = "docs"
	}
	if c.Docs.Dir == "" {
		c.Docs.Dir = "docs-site"
	}
	if c.Docs.Committer.Name == "" {
		c.Docs.Committer.Name = "docpub bot"
	}
	if c.Docs.Committer.Email == "" {
		c.Docs.Committer.Email = "docpub@localhost"
	}
	if c.Docs.Message == "" {
		c.Docs.Message = "docs: regenerate from {commit}"
	}
	if len(c.Toolchain.Packages) > 0 && len(c.Toolchain.Installer) == 0 {
		interp := c.Toolchain.Interpreter
		if interp == "" {
			interp = "python3"
			c.Toolchain.Interpreter = interp
		}
		c.Toolchain.Installer = []string{interp, "-m", "pip", "install"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Daemon != nil {
		d := c.Daemon
		if d.Listen == "" {
			d.Listen = ":8080"
		}
		if d.WebhookPath == "" {
			d.WebhookPath = "/webhook"
		}
		if !strings.HasPrefix(d.WebhookPath, "/") {
			d.WebhookPath = "/" + d.WebhookPath
		}
		if d.WatchBranch == "" {
			d.WatchBranch = c.Source.Ref
		}
		if d.NATSSubject == "" {
			d.NATSSubject = "docpub.runs"
		}
		if d.JournalPath != "" && d.JournalRetention == 0 {
			d.JournalRetention = Duration(30 * 24 * time.Hour)
		}
	}
}

// Validate checks cross-field consistency after defaults were applied.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return errors.ValidationError("source.url is required").Build()
	}
	if c.Docs.Branch == c.Source.Ref && c.Docs.URL == c.Source.URL {
		return errors.ValidationError("docs.branch must differ from source.ref when both point at the same repository").
			WithContext("branch", c.Docs.Branch).
			Build()
	}
	if strings.ContainsAny(c.Docs.Dir, `/\`) {
		return errors.ValidationError("docs.dir must be a bare directory name").
			WithContext("dir", c.Docs.Dir).
			Build()
	}
	if err := validateAuth("source.auth", c.Source.Auth); err != nil {
		return err
	}
	if err := validateAuth("docs.auth", c.Docs.Auth); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.ValidationError("logging.level must be one of debug|info|warn|error").
			WithContext("level", c.Logging.Level).
			Build()
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.ValidationError("logging.format must be text or json").
			WithContext("format", c.Logging.Format).
			Build()
	}
	if c.Daemon != nil {
		if c.Daemon.ScheduleEvery != 0 && c.Daemon.ScheduleEvery.Std() < 10*time.Second {
			return errors.ValidationError("daemon.schedule_every must be at least 10s").
				WithContext("schedule_every", c.Daemon.ScheduleEvery.Std().String()).
				Build()
		}
		if c.Daemon.JournalRetention < 0 {
			return errors.ValidationError("daemon.journal_retention must not be negative").
				WithContext("journal_retention", c.Daemon.JournalRetention.Std().String()).
				Build()
		}
	}
	return nil
}

func validateAuth(field string, a *AuthConfig) error {
	if a.IsZero() {
		return nil
	}
	switch a.Type {
	case AuthTypeSSH:
		if a.KeyPath == "" {
			return errors.ValidationError(fmt.Sprintf("%s.key_path is required for ssh auth", field)).Build()
		}
	case AuthTypeToken:
		if a.Token == "" {
			return errors.ValidationError(fmt.Sprintf("%s.token is required for token auth", field)).Build()
		}
	case AuthTypeBasic:
		if a.Username == "" || a.Password == "" {
			return errors.ValidationError(fmt.Sprintf("%s requires username and password for basic auth", field)).Build()
		}
	default:
		return errors.ValidationError(fmt.Sprintf("%s.type %q is not supported", field, a.Type)).Build()
	}
	return nil
}
