package npm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/fbkclanna/lpck/internal/log"
)

// DefaultBinary is the executable used when no override is configured.
const DefaultBinary = "npm"

// ExitError reports an external command that finished with a non-zero status.
type ExitError struct {
	Op     string // "pack", "install" or "prepack"
	Status int
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s failed with exit status %d", e.Op, e.Status)
}

func (e *ExitError) Unwrap() error { return e.Err }

// IsOp reports whether err is an *ExitError for op.
func IsOp(err error, op string) bool {
	var ee *ExitError
	return errors.As(err, &ee) && ee.Op == op
}

// Tool runs npm. Output of the child process goes to Stdout and Stderr.
type Tool struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Tool for the given binary (DefaultBinary when empty).
func New(binary string, stdout, stderr io.Writer) *Tool {
	if binary == "" {
		binary = DefaultBinary
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Tool{Binary: binary, Stdout: stdout, Stderr: stderr}
}

// PackAll packs every workspace member of rootDir into archiveDir with a
// single npm invocation. includeRoot also packs the root package.
func (t *Tool) PackAll(rootDir, archiveDir string, includeRoot bool) error {
	if err := os.MkdirAll(archiveDir, 0755); err != nil { //nolint:gosec // archive dir needs to be readable
		return fmt.Errorf("creating archive directory: %w", err)
	}
	args := []string{"pack", "--workspaces", "--pack-destination", archiveDir}
	if includeRoot {
		args = append(args, "--include-workspace-root")
	}
	return t.run("pack", rootDir, t.Binary, args...)
}

// Install installs the given archives into targetDir without saving them
// to the target manifest.
func (t *Tool) Install(targetDir string, archives []string) error {
	if len(archives) == 0 {
		return nil
	}
	args := append([]string{"install", "--no-save"}, archives...)
	return t.run("install", targetDir, t.Binary, args...)
}

// Prepack runs a user supplied command line through the platform shell.
// The command line comes from the preset file and may chain commands.
func (t *Tool) Prepack(commandLine, dir string) error {
	if strings.TrimSpace(commandLine) == "" {
		return nil
	}
	shell, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/C"
	}
	return t.run("prepack", dir, shell, flag, commandLine)
}

// Version returns the output of "npm --version".
func (t *Tool) Version() (string, error) {
	cmd := exec.Command(t.Binary, "--version") //nolint:gosec // binary from config
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s --version: %w: %s", t.Binary, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// LookPath returns the resolved path of the npm binary.
func (t *Tool) LookPath() (string, error) {
	return exec.LookPath(t.Binary)
}

// run executes name in dir, streaming output. A non-zero exit becomes an
// *ExitError; failing to start the process is returned as is.
func (t *Tool) run(op, dir, name string, args ...string) error {
	log.Debug(log.CatNpm, "exec", "op", op, "dir", dir, "cmd", name+" "+strings.Join(args, " "))
	cmd := exec.Command(name, args...) //nolint:gosec // arguments are built by lpck, prepack comes from the user's preset
	cmd.Dir = dir
	cmd.Stdout = t.Stdout
	cmd.Stderr = t.Stderr
	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Warn(log.CatNpm, "command failed", "op", op, "status", exitErr.ExitCode())
		return &ExitError{Op: op, Status: exitErr.ExitCode(), Err: err}
	}
	return fmt.Errorf("%s: running %s: %w", op, name, err)
}
