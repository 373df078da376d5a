package gitops

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	appcfg "git.home.luguber.info/inful/docpub/internal/config"
)

// buildAuth returns a go-git AuthMethod for the given AuthConfig, or nil when
// no authentication is configured.
func buildAuth(authCfg *appcfg.AuthConfig) (transport.AuthMethod, error) {
	if authCfg.IsZero() {
		return nil, nil
	}
	switch authCfg.Type {
	case appcfg.AuthTypeSSH:
		keys, err := gitssh.NewPublicKeysFromFile("git", authCfg.KeyPath, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load ssh key %s: %w", authCfg.KeyPath, err)
		}
		return keys, nil
	case appcfg.AuthTypeToken:
		// Most git hosting services accept "token" as the username for token auth.
		username := authCfg.Username
		if username == "" {
			username = "token"
		}
		return &githttp.BasicAuth{Username: username, Password: authCfg.Token}, nil
	case appcfg.AuthTypeBasic:
		return &githttp.BasicAuth{Username: authCfg.Username, Password: authCfg.Password}, nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", authCfg.Type)
	}
}
