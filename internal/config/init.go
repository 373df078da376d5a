package config

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/docpub/internal/errors"
)

const starterConfig = `# docpub configuration
source:
  url: https://git.example.com/team/project.git
  ref: main

docs:
  url: https://git.example.com/team/project.git
  branch: docs
  committer:
    name: docpub bot
    email: docpub@example.com
  # auth:
  #   type: token
  #   token: ${DOCS_PUSH_TOKEN}

toolchain:
  interpreter: python3
  packages: [pdoc3]

generate:
  script: docs.sh
  link_check: true

# daemon:
#   listen: ":8080"
#   webhook_path: /webhook
#   webhook_secret: ${WEBHOOK_SECRET}
#   schedule_every: 1h
#   journal_path: docpub.db
#   journal_retention: 720h
#   metrics: true
`

// Init writes a starter configuration file. An existing file is only
// overwritten when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
		return errors.FileSystemError("failed to write configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	slog.Info("Configuration file written", "path", path)
	return nil
}
