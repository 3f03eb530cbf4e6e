package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fbkclanna/lpck/internal/config"
	"github.com/fbkclanna/lpck/internal/testutil"
)

func TestDoctor_ok(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LPCK_HOME", home)
	bin, _ := testutil.FakeNpm(t)
	f := &config.File{Presets: []config.Preset{{Name: "lib", Path: "/src/lib"}}}
	if err := config.Save(filepath.Join(home, config.FileName), f); err != nil {
		t.Fatal(err)
	}

	out, err := executeRoot(t, "doctor", "--npm", bin)
	if err != nil {
		t.Fatalf("doctor failed: %v\n%s", err, out)
	}
	for _, want := range []string{"found at " + bin, "10.0.0-fake", "1 preset(s)", "/src/lib", "All checks passed."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDoctor_missingNpm(t *testing.T) {
	t.Setenv("LPCK_HOME", t.TempDir())

	out, err := executeRoot(t, "doctor", "--npm", filepath.Join(t.TempDir(), "no-npm"))
	if err == nil {
		t.Fatal("expected doctor to fail without npm")
	}
	if !strings.Contains(out, "NOT FOUND") || !strings.Contains(out, "none (run lpck --init)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestDoctor_invalidPresets(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LPCK_HOME", home)
	bin, _ := testutil.FakeNpm(t)
	if err := os.WriteFile(filepath.Join(home, config.FileName), []byte(`{"presets": [{"path": "/x"}]}`), 0644); err != nil { //nolint:gosec // test file
		t.Fatal(err)
	}

	out, err := executeRoot(t, "doctor", "--npm", bin)
	if err == nil {
		t.Fatal("expected doctor to fail on invalid presets")
	}
	if !strings.Contains(out, "INVALID") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
