package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/lpck/internal/config"
	"github.com/fbkclanna/lpck/internal/log"
	"github.com/fbkclanna/lpck/internal/npm"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lpck [origin]",
		Short: "Pack a local npm workspace and install its packages into a project",
		Long: `lpck packs every package of a local npm workspace, with references between
the workspace's packages pointing at the packed archives, and installs the
archives the target project depends on.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	f := cmd.Flags()
	f.StringP("preset", "p", "", "Use the origin and prepack command of a named preset")
	f.Bool("printPresets", false, "Print the configured presets and exit")
	f.Bool("init", false, "Create the preset file (interactive on a terminal)")
	f.Bool("noPrepack", false, "Skip the preset's prepack command")
	f.Bool("rawInstall", false, "Install every archive instead of only the target's dependencies")
	f.String("target", ".", "Project to install the packages into")
	f.Bool("strict", false, "Abort without installing when packing fails")
	f.Bool("local", false, "Keep archives and the debug log under <origin>/.lpck")
	f.String("archive-dir", "", "Directory for packed archives (default <base>/packages)")
	f.Bool("keep-archives", false, "Leave the archives and a lock file in the archive directory")
	f.Bool("include-root", false, "Also pack the workspace root package")

	pf := cmd.PersistentFlags()
	pf.String("npm", "", "npm executable (default $LPCK_NPM or npm)")
	pf.String("config", "", "Preset file (default <base>/config.json)")
	pf.Bool("debug", false, "Write a debug log to <base>/debug.log")

	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// settings are the flag and environment values shared by every command.
type settings struct {
	env        config.Env
	home       string // global base directory
	configPath string
	npm        string
	debug      bool
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	env := config.LoadEnv()
	home, err := config.BaseDir(env, "", false)
	if err != nil {
		return nil, err
	}
	s := &settings{env: env, home: home}

	s.configPath, _ = cmd.Flags().GetString("config")
	if s.configPath == "" {
		s.configPath = filepath.Join(home, config.FileName)
	}
	s.npm, _ = cmd.Flags().GetString("npm")
	if s.npm == "" {
		s.npm = env.Npm
	}
	debug, _ := cmd.Flags().GetBool("debug")
	s.debug = debug || env.Debug
	return s, nil
}

// startLog enables the debug log under base when requested.
func (s *settings) startLog(base string) (func(), error) {
	if !s.debug {
		return func() {}, nil
	}
	closeLog, err := log.Init(filepath.Join(base, config.LogFileName))
	if err != nil {
		return nil, fmt.Errorf("starting debug log: %w", err)
	}
	return closeLog, nil
}

func (s *settings) tool(cmd *cobra.Command) *npm.Tool {
	return npm.New(s.npm, cmd.OutOrStdout(), cmd.ErrOrStderr())
}
