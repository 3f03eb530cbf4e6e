package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fbkclanna/lpck/internal/config"
	"github.com/fbkclanna/lpck/internal/ui"
)

func runInit(cmd *cobra.Command, s *settings) error {
	out := cmd.OutOrStdout()
	created, err := config.Init(s.configPath)
	if err != nil {
		return err
	}
	if created {
		ui.Success(out, "Created %s", s.configPath)
	} else {
		_, _ = fmt.Fprintf(out, "Preset file already exists: %s\n", s.configPath)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}

	f, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	added, err := interactiveAddPresets(f)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		return nil
	}
	if err := config.Save(s.configPath, f); err != nil {
		return err
	}
	ui.Success(out, "Added %d preset(s) to %s", len(added), s.configPath)
	return nil
}

func runPrintPresets(cmd *cobra.Command, s *settings) error {
	out := cmd.OutOrStdout()
	f, err := config.Load(s.configPath)
	if errors.Is(err, config.ErrNoConfig) {
		_, _ = fmt.Fprintf(out, "No presets configured. Run lpck --init to create %s\n", s.configPath)
		return nil
	}
	if err != nil {
		return err
	}
	if len(f.Presets) == 0 {
		_, _ = fmt.Fprintf(out, "No presets in %s\n", s.configPath)
		return nil
	}
	printPresetTable(cmd, f)
	return nil
}

func printPresetTable(cmd *cobra.Command, f *config.File) {
	tbl := ui.NewTable(cmd.OutOrStdout(), "NAME", "PATH", "PREPACK")
	for _, p := range f.Presets {
		tbl.Row(p.Name, p.Path, p.Prepack)
	}
	_ = tbl.Flush()
}
