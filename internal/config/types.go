package config

// Config is the root configuration for the publish pipeline.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Docs      DocsConfig      `yaml:"docs"`
	Toolchain ToolchainConfig `yaml:"toolchain,omitempty"`
	Generate  GenerateConfig  `yaml:"generate,omitempty"`
	Workspace WorkspaceConfig `yaml:"workspace,omitempty"`
	Daemon    *DaemonConfig   `yaml:"daemon,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// SourceConfig describes the repository whose documentation is generated.
type SourceConfig struct {
	URL          string      `yaml:"url"`
	Ref          string      `yaml:"ref,omitempty"` // branch name, defaults to main
	ShallowDepth int         `yaml:"shallow_depth,omitempty"`
	Auth         *AuthConfig `yaml:"auth,omitempty"`
}

// DocsConfig describes the documentation branch checkout and publish target.
type DocsConfig struct {
	URL string `yaml:"url"`
	// Branch is the dedicated documentation branch. It must already exist on
	// the remote; a missing branch aborts the run.
	Branch string `yaml:"branch,omitempty"`
	// Dir is the subdirectory name inside the workspace for the docs checkout.
	Dir       string      `yaml:"dir,omitempty"`
	Auth      *AuthConfig `yaml:"auth,omitempty"`
	Committer Identity    `yaml:"committer,omitempty"`
	// Message is the commit message; the placeholder {commit} expands to the
	// short hash of the source commit the docs were generated from.
	Message string `yaml:"message,omitempty"`
}

// Identity is the fixed committer identity used for published commits.
type Identity struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// AuthType enumerates supported authentication methods (stringly for YAML compatibility).
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// AuthConfig represents authentication configuration.
type AuthConfig struct {
	Type     AuthType `yaml:"type"` // ssh|token|basic|none
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty"`
}

// IsZero reports whether no auth method is specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

// ToolchainConfig describes generator toolchain provisioning. An empty config
// skips the provisioning stage entirely.
type ToolchainConfig struct {
	// Interpreter is looked up on PATH before installing anything.
	Interpreter string `yaml:"interpreter,omitempty"`
	// Installer is the install command argv; package names are appended.
	// Defaults to "<interpreter> -m pip install" when packages are configured.
	Installer []string `yaml:"installer,omitempty"`
	Packages  []string `yaml:"packages,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty"`
}

// Enabled reports whether the provisioning stage has anything to do.
func (t ToolchainConfig) Enabled() bool {
	return t.Interpreter != "" || len(t.Packages) > 0
}

// GenerateConfig describes the documentation generation stage.
type GenerateConfig struct {
	// Script is the generation script path relative to the source checkout
	// root. When empty, the built-in Markdown renderer is used instead.
	Script  string            `yaml:"script,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	// Include restricts the built-in renderer to these path prefixes within
	// the source checkout. Empty means the whole tree.
	Include []string `yaml:"include,omitempty"`
	// LinkCheck enables the warn-only relative link scan over generated HTML.
	LinkCheck bool `yaml:"link_check,omitempty"`
}

// WorkspaceConfig controls where checkouts are materialized.
type WorkspaceConfig struct {
	// Dir is the base directory; empty means the system temp directory.
	Dir string `yaml:"dir,omitempty"`
	// Persistent keeps a fixed workspace directory between runs instead of
	// ephemeral timestamped ones.
	Persistent bool `yaml:"persistent,omitempty"`
}

// DaemonConfig configures the long-running mode.
type DaemonConfig struct {
	Listen        string   `yaml:"listen,omitempty"`
	WebhookPath   string   `yaml:"webhook_path,omitempty"`
	WebhookSecret string   `yaml:"webhook_secret,omitempty"`
	// WatchBranch filters push events; only pushes to this branch trigger a
	// run. Defaults to the source ref.
	WatchBranch   string   `yaml:"watch_branch,omitempty"`
	ScheduleEvery Duration `yaml:"schedule_every,omitempty"`
	JournalPath   string   `yaml:"journal_path,omitempty"`
	// JournalRetention bounds journal growth; runs older than this are pruned
	// after each run. Defaults to 30 days when a journal is configured.
	JournalRetention Duration `yaml:"journal_retention,omitempty"`
	NATSURL       string   `yaml:"nats_url,omitempty"`
	NATSSubject   string   `yaml:"nats_subject,omitempty"`
	Metrics       bool     `yaml:"metrics,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // text|json
}
