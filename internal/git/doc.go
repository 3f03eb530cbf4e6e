// Package git provides the read-only Git CLI queries lpck uses before it
// rewrites manifests: whether a workspace is a repository and which of its
// manifests carry uncommitted changes.
package git
