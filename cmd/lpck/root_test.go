package main

import (
	"strings"
	"testing"
)

func TestVersionFlag(t *testing.T) {
	out, err := executeRoot(t, "--version")
	if err != nil {
		t.Fatal(err)
	}
	if want := "lpck version " + version; !strings.Contains(out, want) {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRootCmd_leavesErrorOutputToMain(t *testing.T) {
	out, err := executeRoot(t, "--no-such-flag")
	if err == nil {
		t.Fatal("expected an error")
	}
	if strings.Contains(out, "no-such-flag") {
		t.Errorf("errors are printed by main, got %q", out)
	}
}
