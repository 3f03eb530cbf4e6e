package testutil

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// Package describes a package.json written by WritePackage.
type Package struct {
	Name             string            `json:"name,omitempty"`
	Version          string            `json:"version,omitempty"`
	Private          bool              `json:"private,omitempty"`
	Workspaces       []string          `json:"workspaces,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
}

// WritePackage writes pkg as package.json into root/rel and returns the
// package directory.
func WritePackage(t *testing.T, root, rel string, pkg Package) string {
	t.Helper()
	dir := filepath.Join(root, rel)
	if err := os.MkdirAll(dir, 0755); err != nil { //nolint:gosec // test dir
		t.Fatal(err)
	}
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, "package.json"), data, 0644); err != nil { //nolint:gosec // test file
		t.Fatal(err)
	}
	return dir
}

// CreateWorkspace creates an npm workspace with members under packages/.
// Returns the workspace root.
func CreateWorkspace(t *testing.T, members ...Package) string {
	t.Helper()
	root := t.TempDir()
	WritePackage(t, root, ".", Package{
		Name:       "workspace-root",
		Private:    true,
		Workspaces: []string{"packages/*"},
	})
	for _, m := range members {
		WritePackage(t, root, filepath.Join("packages", dirName(m.Name)), m)
	}
	return root
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test file
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func dirName(pkgName string) string {
	return filepath.Base(pkgName)
}

// FakeNpm writes an executable shell script that records its arguments,
// one invocation per line, into the returned log file. Running
// "pack ... --pack-destination <dir>" creates the archives listed in the
// LPCK_FAKE_ARCHIVES environment variable inside <dir>. The script exits
// with the status in LPCK_FAKE_<SUBCOMMAND>_EXIT (default 0).
func FakeNpm(t *testing.T) (bin, logPath string) {
	t.Helper()
	dir := t.TempDir()
	bin = filepath.Join(dir, "npm")
	logPath = filepath.Join(dir, "npm.log")
	script := `#!/bin/sh
echo "$@" >> "` + logPath + `"
cmd="$1"
if [ "$cmd" = "pack" ]; then
  dest=""
  prev=""
  for a in "$@"; do
    if [ "$prev" = "--pack-destination" ]; then dest="$a"; fi
    prev="$a"
  done
  if [ -n "$dest" ]; then
    for f in $LPCK_FAKE_ARCHIVES; do : > "$dest/$f"; done
  fi
  exit "${LPCK_FAKE_PACK_EXIT:-0}"
fi
if [ "$cmd" = "install" ]; then
  exit "${LPCK_FAKE_INSTALL_EXIT:-0}"
fi
if [ "$cmd" = "--version" ]; then
  echo "10.0.0-fake"
fi
exit 0
`
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil { //nolint:gosec // test script must be executable
		t.Fatal(err)
	}
	return bin, logPath
}

// InitRepo turns dir into a git repository with every file committed.
func InitRepo(t *testing.T, dir string) {
	t.Helper()
	run(t, dir, "git", "init", "-b", "main")
	run(t, dir, "git", "config", "user.email", "test@example.com")
	run(t, dir, "git", "config", "user.name", "Test")
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "initial commit")
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("command %s %v failed: %v", name, args, err)
	}
}
