package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/lpck/internal/config"
	"github.com/fbkclanna/lpck/internal/pipeline"
	"github.com/fbkclanna/lpck/internal/ui"
)

var stepLabels = map[pipeline.State]string{
	pipeline.StateOriginLoaded: "Loaded origin workspace",
	pipeline.StateSubstituted:  "Pointed local dependencies at archives",
	pipeline.StatePacked:       "Packed workspace packages",
	pipeline.StatePackFailed:   "Packing failed",
	pipeline.StateRestored:     "Restored origin manifests",
	pipeline.StateTargetLoaded: "Loaded target project",
	pipeline.StateInstalled:    "Installed packages",
	pipeline.StateCleanedUp:    "Removed archives",
}

func runRoot(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	if initFlag, _ := cmd.Flags().GetBool("init"); initFlag {
		return runInit(cmd, s)
	}
	if printFlag, _ := cmd.Flags().GetBool("printPresets"); printFlag {
		return runPrintPresets(cmd, s)
	}

	origin, prepack, err := resolveOrigin(cmd, s, args)
	if err != nil {
		return err
	}
	if noPrepack, _ := cmd.Flags().GetBool("noPrepack"); noPrepack {
		prepack = ""
	}

	local, _ := cmd.Flags().GetBool("local")
	base, err := config.BaseDir(s.env, origin, local)
	if err != nil {
		return err
	}
	archiveDir, _ := cmd.Flags().GetString("archive-dir")
	if archiveDir == "" {
		archiveDir = filepath.Join(base, config.ArchiveDirName)
	}

	closeLog, err := s.startLog(base)
	if err != nil {
		return err
	}
	defer closeLog()

	target, _ := cmd.Flags().GetString("target")
	rawInstall, _ := cmd.Flags().GetBool("rawInstall")
	strict, _ := cmd.Flags().GetBool("strict")
	keep, _ := cmd.Flags().GetBool("keep-archives")
	includeRoot, _ := cmd.Flags().GetBool("include-root")

	out := cmd.OutOrStdout()
	steps := 7
	if keep {
		steps--
	}
	progress := ui.NewProgress(out, steps)
	tool := s.tool(cmd)

	res, err := pipeline.Run(pipeline.Options{
		Origin:       origin,
		Target:       target,
		ArchiveDir:   archiveDir,
		IncludeRoot:  includeRoot,
		Prepack:      prepack,
		RawInstall:   rawInstall,
		Strict:       strict,
		KeepArchives: keep,
		ToolVersion:  version,
		Packager:     tool,
		Prepacker:    tool,
		Installer:    tool,
		OnState: func(st pipeline.State) {
			if label, ok := stepLabels[st]; ok {
				progress.Step(label)
			}
		},
	})
	for _, w := range res.Warnings {
		ui.Warn(cmd.ErrOrStderr(), "%s", w)
	}
	if err != nil {
		return err
	}

	if len(res.Substituted) > 0 {
		progress.Log("substituted in: %s", strings.Join(res.Substituted, ", "))
	}
	switch {
	case len(res.Installed) == 0:
		ui.Success(out, "Nothing to install into %s", target)
	case rawInstall:
		ui.Success(out, "Installed %d archives into %s", len(res.Installed), target)
	default:
		ui.Success(out, "Installed %s into %s", strings.Join(res.Selected, ", "), target)
	}

	if res.LockFile != "" {
		_, _ = fmt.Fprintf(out, "Archives kept in %s (see %s)\n", archiveDir, filepath.Base(res.LockFile))
	}

	if res.PackErr != nil {
		return fmt.Errorf("packing failed: %w", res.PackErr)
	}
	return nil
}

// resolveOrigin picks the origin workspace from the positional argument or
// a preset. A preset also supplies the prepack command.
func resolveOrigin(cmd *cobra.Command, s *settings, args []string) (origin, prepack string, err error) {
	name, _ := cmd.Flags().GetString("preset")
	switch {
	case name != "" && len(args) > 0:
		return "", "", errors.New("give either an origin path or --preset, not both")
	case name == "" && len(args) == 0:
		return "", "", errors.New("an origin workspace path or --preset is required")
	case name == "":
		return args[0], "", nil
	}

	f, err := config.Load(s.configPath)
	if err != nil {
		if errors.Is(err, config.ErrNoConfig) {
			return "", "", fmt.Errorf("%w; run lpck --init first", err)
		}
		return "", "", err
	}
	p, ok := f.Find(name)
	if !ok {
		if similar := f.Suggest(name); len(similar) > 0 {
			return "", "", fmt.Errorf("unknown preset %q (did you mean %s?)", name, strings.Join(similar, ", "))
		}
		return "", "", fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(f.Names(), ", "))
	}
	return p.Path, p.Prepack, nil
}
