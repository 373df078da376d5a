// Package gitops wraps go-git for the three repository operations the
// pipeline needs: cloning the source tree, cloning the documentation branch,
// and committing/pushing generated output back to it.
package gitops
