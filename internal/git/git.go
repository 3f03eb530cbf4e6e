package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// IsGitInstalled returns true if git is available on the system PATH.
func IsGitInstalled() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// IsRepo returns true if dir is inside a git working tree.
func IsRepo(dir string) bool {
	if !IsGitInstalled() {
		return false
	}
	out, err := outputQuiet(dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// DirtyFiles returns which of paths have uncommitted changes, relative to
// the repository root. Untracked files count as dirty.
func DirtyFiles(dir string, paths ...string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(dir, p)
		if err != nil {
			return nil, fmt.Errorf("relative path for %s: %w", p, err)
		}
		rel = append(rel, filepath.ToSlash(r))
	}
	args := append([]string{"status", "--porcelain", "--untracked-files=all", "--"}, rel...)
	out, err := outputQuiet(dir, args...)
	if err != nil {
		return nil, err
	}
	var dirty []string
	for _, line := range strings.Split(out, "\n") {
		// Porcelain v1: two status columns, a space, then the path.
		if len(line) < 4 {
			continue
		}
		dirty = append(dirty, strings.TrimSpace(line[3:]))
	}
	return dirty, nil
}

// HeadCommit returns the full SHA of HEAD.
func HeadCommit(dir string) (string, error) {
	out, err := outputQuiet(dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Version returns the output of "git version".
func Version() (string, error) {
	out, err := outputQuiet(".", "version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// outputQuiet executes a git command and returns its stdout without printing to the console.
func outputQuiet(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}
