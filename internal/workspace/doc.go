// Package workspace resolves the member packages of an npm, yarn or pnpm
// workspace. Resolution is read-only: it maps package names to directories
// and never touches the manifests it reads.
package workspace
