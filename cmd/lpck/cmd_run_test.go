package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fbkclanna/lpck/internal/config"
	"github.com/fbkclanna/lpck/internal/install"
	"github.com/fbkclanna/lpck/internal/lock"
	"github.com/fbkclanna/lpck/internal/testutil"
)

type runEnv struct {
	origin     string
	target     string
	archiveDir string
	home       string
	npm        string
	npmLog     string
	manifests  map[string]string
}

// setupRun creates an origin workspace with packages a and b (a depends on
// b), a target depending on b, and a fake npm on an isolated LPCK_HOME.
func setupRun(t *testing.T) *runEnv {
	t.Helper()
	origin := testutil.CreateWorkspace(t,
		testutil.Package{Name: "a", Version: "1.0.0", Dependencies: map[string]string{"b": "^1.0.0"}},
		testutil.Package{Name: "b", Version: "1.2.0"},
	)
	target := t.TempDir()
	testutil.WritePackage(t, target, ".", testutil.Package{
		Name: "app", Version: "0.1.0",
		Dependencies: map[string]string{"b": "^1.0.0", "react": "^18.0.0"},
	})
	home := t.TempDir()
	bin, logPath := testutil.FakeNpm(t)

	t.Setenv("LPCK_HOME", home)
	t.Setenv("LPCK_NPM", "")
	t.Setenv("LPCK_DEBUG", "")
	t.Setenv("LPCK_FAKE_ARCHIVES", "a-1.0.0.tgz b-1.2.0.tgz")

	env := &runEnv{
		origin:     origin,
		target:     target,
		archiveDir: filepath.Join(home, config.ArchiveDirName),
		home:       home,
		npm:        bin,
		npmLog:     logPath,
		manifests:  map[string]string{},
	}
	for _, dir := range []string{"a", "b"} {
		p := filepath.Join(origin, "packages", dir, "package.json")
		env.manifests[p] = testutil.ReadFile(t, p)
	}
	return env
}

func (e *runEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--npm", e.npm))
	err := root.Execute()
	return out.String(), err
}

func (e *runEnv) npmCalls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(e.npmLog) //nolint:gosec // test file
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func (e *runEnv) assertRestored(t *testing.T) {
	t.Helper()
	for p, want := range e.manifests {
		if got := testutil.ReadFile(t, p); got != want {
			t.Errorf("%s not restored:\n got: %s\nwant: %s", p, got, want)
		}
	}
}

func (e *runEnv) assertArchivesCleaned(t *testing.T, dir string) {
	t.Helper()
	left, err := install.ListArchives(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("archives left behind: %v", left)
	}
}

func TestRun_packAndInstall(t *testing.T) {
	e := setupRun(t)

	out, err := e.execute(t, e.origin, "--target", e.target)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	calls := e.npmCalls(t)
	if len(calls) != 2 {
		t.Fatalf("expected pack and install, got %v", calls)
	}
	if want := "pack --workspaces --pack-destination " + e.archiveDir; calls[0] != want {
		t.Errorf("pack call = %q, want %q", calls[0], want)
	}
	if want := "install --no-save " + filepath.Join(e.archiveDir, "b-1.2.0.tgz"); calls[1] != want {
		t.Errorf("install call = %q, want %q", calls[1], want)
	}
	for _, want := range []string{"[1/7] Loaded origin workspace", "[7/7] Removed archives", "Installed b into"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	e.assertRestored(t)
	e.assertArchivesCleaned(t, e.archiveDir)
}

func TestRun_rawInstall(t *testing.T) {
	e := setupRun(t)

	if out, err := e.execute(t, e.origin, "--target", e.target, "--rawInstall"); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	calls := e.npmCalls(t)
	want := "install --no-save " + filepath.Join(e.archiveDir, "a-1.0.0.tgz") + " " + filepath.Join(e.archiveDir, "b-1.2.0.tgz")
	if len(calls) != 2 || calls[1] != want {
		t.Errorf("calls = %v, want install of both archives", calls)
	}
}

func TestRun_packFailureInstallsAndExitsNonZero(t *testing.T) {
	e := setupRun(t)
	t.Setenv("LPCK_FAKE_PACK_EXIT", "1")

	out, err := e.execute(t, e.origin, "--target", e.target)
	if err == nil {
		t.Fatal("expected error after pack failure")
	}
	if !strings.Contains(err.Error(), "packing failed") {
		t.Errorf("error = %v", err)
	}
	calls := e.npmCalls(t)
	if len(calls) != 2 || !strings.HasPrefix(calls[1], "install") {
		t.Errorf("expected install after pack failure, got %v", calls)
	}
	if !strings.Contains(out, "Packing failed") {
		t.Errorf("output missing pack failure step:\n%s", out)
	}
	e.assertRestored(t)
	e.assertArchivesCleaned(t, e.archiveDir)
}

func TestRun_strictSkipsInstall(t *testing.T) {
	e := setupRun(t)
	t.Setenv("LPCK_FAKE_PACK_EXIT", "2")

	if _, err := e.execute(t, e.origin, "--target", e.target, "--strict"); err == nil {
		t.Fatal("expected error")
	}
	calls := e.npmCalls(t)
	if len(calls) != 1 {
		t.Errorf("expected only pack, got %v", calls)
	}
	e.assertRestored(t)
	e.assertArchivesCleaned(t, e.archiveDir)
}

func TestRun_installFailure(t *testing.T) {
	e := setupRun(t)
	t.Setenv("LPCK_FAKE_INSTALL_EXIT", "1")

	_, err := e.execute(t, e.origin, "--target", e.target)
	if err == nil || !strings.Contains(err.Error(), "install failed") {
		t.Fatalf("expected install error, got %v", err)
	}
	e.assertRestored(t)
	e.assertArchivesCleaned(t, e.archiveDir)
}

func TestRun_localAndKeepArchives(t *testing.T) {
	e := setupRun(t)

	if out, err := e.execute(t, e.origin, "--target", e.target, "--local", "--keep-archives", "--debug"); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	localDir := filepath.Join(e.origin, config.DirName, config.ArchiveDirName)
	left, err := install.ListArchives(localDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 2 {
		t.Errorf("expected kept archives in %s, got %v", localDir, left)
	}
	lf, err := lock.Load(filepath.Join(localDir, lock.FileName))
	if err != nil {
		t.Fatalf("lock file: %v", err)
	}
	if lf.ToolVersion != version || len(lf.Packages) != 2 {
		t.Errorf("unexpected lock file: %+v", lf)
	}
	logData := testutil.ReadFile(t, filepath.Join(e.origin, config.DirName, config.LogFileName))
	if !strings.Contains(logData, "run_id=") {
		t.Errorf("debug log missing run_id:\n%s", logData)
	}
}

func TestRun_archiveDirFlag(t *testing.T) {
	e := setupRun(t)
	dir := filepath.Join(t.TempDir(), "tgz")

	if out, err := e.execute(t, e.origin, "--target", e.target, "--archive-dir", dir); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if calls := e.npmCalls(t); !strings.HasSuffix(calls[0], dir) {
		t.Errorf("pack destination not %s: %v", dir, calls)
	}
}

func TestRun_archiveDirMustNotBeTarget(t *testing.T) {
	e := setupRun(t)
	index := filepath.Join(e.target, "index.js")
	if err := os.WriteFile(index, []byte("console.log(1)\n"), 0600); err != nil {
		t.Fatal(err)
	}
	before := testutil.ReadFile(t, filepath.Join(e.target, "package.json"))

	out, err := e.execute(t, e.origin, "--target", e.target, "--archive-dir", e.target)
	if err == nil || !strings.Contains(err.Error(), "must not contain") {
		t.Fatalf("expected archive directory error, got %v\n%s", err, out)
	}
	if calls := e.npmCalls(t); len(calls) != 0 {
		t.Errorf("npm should not run, got %v", calls)
	}
	if got := testutil.ReadFile(t, filepath.Join(e.target, "package.json")); got != before {
		t.Errorf("target manifest changed:\n%s", got)
	}
	if got := testutil.ReadFile(t, index); got != "console.log(1)\n" {
		t.Errorf("index.js changed: %q", got)
	}
	e.assertRestored(t)
}

func TestRun_includeRoot(t *testing.T) {
	e := setupRun(t)
	testutil.WritePackage(t, e.origin, ".", testutil.Package{
		Name: "workspace-root", Version: "0.0.0", Private: true, Workspaces: []string{"packages/*"},
	})

	if out, err := e.execute(t, e.origin, "--target", e.target, "--include-root"); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if calls := e.npmCalls(t); !strings.HasSuffix(calls[0], "--include-workspace-root") {
		t.Errorf("pack call missing --include-workspace-root: %v", calls)
	}
}

func TestRun_preset(t *testing.T) {
	e := setupRun(t)
	f := &config.File{Presets: []config.Preset{{Name: "lib", Path: e.origin, Prepack: "touch prepacked"}}}
	if err := config.Save(filepath.Join(e.home, config.FileName), f); err != nil {
		t.Fatal(err)
	}

	if out, err := e.execute(t, "-p", "lib", "--target", e.target); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(e.origin, "prepacked")); err != nil {
		t.Errorf("prepack command did not run: %v", err)
	}
}

func TestRun_presetNoPrepack(t *testing.T) {
	e := setupRun(t)
	f := &config.File{Presets: []config.Preset{{Name: "lib", Path: e.origin, Prepack: "touch prepacked"}}}
	if err := config.Save(filepath.Join(e.home, config.FileName), f); err != nil {
		t.Fatal(err)
	}

	if out, err := e.execute(t, "--preset", "lib", "--target", e.target, "--noPrepack"); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(e.origin, "prepacked")); !os.IsNotExist(err) {
		t.Error("prepack should have been skipped")
	}
}

func TestRun_prepackFailure(t *testing.T) {
	e := setupRun(t)
	f := &config.File{Presets: []config.Preset{{Name: "lib", Path: e.origin, Prepack: "exit 4"}}}
	if err := config.Save(filepath.Join(e.home, config.FileName), f); err != nil {
		t.Fatal(err)
	}

	_, err := e.execute(t, "-p", "lib", "--target", e.target)
	if err == nil || !strings.Contains(err.Error(), "prepack") {
		t.Fatalf("expected prepack error, got %v", err)
	}
	if calls := e.npmCalls(t); len(calls) != 0 {
		t.Errorf("npm should not run after prepack failure: %v", calls)
	}
}

func TestRun_argumentErrors(t *testing.T) {
	e := setupRun(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no origin", []string{"--target", e.target}, "required"},
		{"origin and preset", []string{e.origin, "-p", "x"}, "not both"},
		{"no preset file", []string{"-p", "x"}, "lpck --init"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRun_unknownPreset(t *testing.T) {
	e := setupRun(t)
	f := &config.File{Presets: []config.Preset{{Name: "lib", Path: e.origin}}}
	if err := config.Save(filepath.Join(e.home, config.FileName), f); err != nil {
		t.Fatal(err)
	}

	_, err := e.execute(t, "-p", "other")
	if err == nil || !strings.Contains(err.Error(), `unknown preset "other"`) {
		t.Fatalf("error = %v", err)
	}
}

func TestRun_malformedOriginManifest(t *testing.T) {
	e := setupRun(t)
	bad := filepath.Join(e.origin, "packages", "b", "package.json")
	if err := os.WriteFile(bad, []byte(`{"name": "b",`), 0644); err != nil { //nolint:gosec // test file
		t.Fatal(err)
	}

	if _, err := e.execute(t, e.origin, "--target", e.target); err == nil {
		t.Fatal("expected load error")
	}
	if calls := e.npmCalls(t); len(calls) != 0 {
		t.Errorf("npm should not run: %v", calls)
	}
}
