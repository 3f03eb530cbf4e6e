package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/lpck/internal/config"
	"github.com/fbkclanna/lpck/internal/git"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose environment for common issues",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ok := true

	tool := s.tool(cmd)
	_, _ = fmt.Fprint(out, "Checking npm... ")
	npmPath, err := tool.LookPath()
	if err != nil {
		_, _ = fmt.Fprintf(out, "NOT FOUND (%s)\n", tool.Binary)
		_, _ = fmt.Fprintln(out, "  npm is required. Install Node.js from https://nodejs.org/ or pass --npm")
		ok = false
	} else {
		_, _ = fmt.Fprintf(out, "found at %s\n", npmPath)
		_, _ = fmt.Fprint(out, "Checking npm version... ")
		if v, verr := tool.Version(); verr != nil {
			_, _ = fmt.Fprintln(out, "ERROR")
			ok = false
		} else {
			_, _ = fmt.Fprintln(out, v)
		}
	}

	// Git is optional; it only powers the uncommitted-manifest warning.
	_, _ = fmt.Fprint(out, "Checking git... ")
	if v, gerr := git.Version(); gerr != nil {
		_, _ = fmt.Fprintln(out, "not found (dirty manifest check disabled)")
	} else {
		_, _ = fmt.Fprintln(out, v)
	}

	_, _ = fmt.Fprintf(out, "Base directory: %s\n", s.home)
	_, _ = fmt.Fprintf(out, "Checking presets (%s)... ", s.configPath)
	f, err := config.Load(s.configPath)
	switch {
	case errors.Is(err, config.ErrNoConfig):
		_, _ = fmt.Fprintln(out, "none (run lpck --init)")
	case err != nil:
		_, _ = fmt.Fprintf(out, "INVALID\n  %v\n", err)
		ok = false
	default:
		_, _ = fmt.Fprintf(out, "%d preset(s)\n", len(f.Presets))
		if len(f.Presets) > 0 {
			printPresetTable(cmd, f)
		}
	}

	if ok {
		_, _ = fmt.Fprintln(out, "\nAll checks passed.")
		return nil
	}
	_, _ = fmt.Fprintln(out, "\nSome checks failed. See above for details.")
	return fmt.Errorf("doctor checks failed")
}
