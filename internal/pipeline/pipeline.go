package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fbkclanna/lpck/internal/git"
	"github.com/fbkclanna/lpck/internal/install"
	"github.com/fbkclanna/lpck/internal/lock"
	"github.com/fbkclanna/lpck/internal/log"
	"github.com/fbkclanna/lpck/internal/manifest"
	"github.com/fbkclanna/lpck/internal/registry"
	"github.com/fbkclanna/lpck/internal/workspace"
)

// State is a step of a run. Runs move through states strictly forward.
type State string

const (
	StateIdle         State = "idle"
	StateOriginLoaded State = "origin-loaded"
	StateSubstituted  State = "substituted"
	StatePacked       State = "packed"
	StatePackFailed   State = "pack-failed"
	StateRestored     State = "restored"
	StateTargetLoaded State = "target-loaded"
	StateInstalled    State = "installed"
	StateCleanedUp    State = "cleaned-up"
	StateDone         State = "done"
)

// Packager produces one archive per workspace member in archiveDir.
type Packager interface {
	PackAll(rootDir, archiveDir string, includeRoot bool) error
}

// Prepacker runs the optional build command before packing.
type Prepacker interface {
	Prepack(commandLine, dir string) error
}

// Options configures a run.
type Options struct {
	Origin      string // workspace root to pack
	Target      string // consumer project to install into
	ArchiveDir  string
	IncludeRoot bool

	Prepack    string // command line run in Origin before substitution
	RawInstall bool   // install every archive in ArchiveDir
	// Strict makes a packaging failure abort the run after the restore.
	Strict bool
	// KeepArchives leaves the archives and a lock file in ArchiveDir.
	KeepArchives bool
	ToolVersion  string // recorded in the lock file

	Packager  Packager
	Prepacker Prepacker
	Installer install.Installer

	// OnState, when set, is called on every state transition.
	OnState func(State)
}

// Result describes a finished or aborted run.
type Result struct {
	RunID       string
	States      []State
	Members     []string
	Substituted []string
	Selected    []string
	Installed   []string
	Warnings    []string
	LockFile    string
	// PackErr is set when packaging failed but the run continued.
	PackErr error

	onState func(State)
}

// State returns the last state reached.
func (r *Result) State() State {
	if len(r.States) == 0 {
		return StateIdle
	}
	return r.States[len(r.States)-1]
}

// Reached reports whether the run passed through s.
func (r *Result) Reached(s State) bool {
	for _, st := range r.States {
		if st == s {
			return true
		}
	}
	return false
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
	log.Debug(log.CatPipeline, "state", "run_id", r.RunID, "state", s)
	if r.onState != nil {
		r.onState(s)
	}
}

func (r *Result) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	log.Warn(log.CatPipeline, msg, "run_id", r.RunID)
}

func (o *Options) validate() error {
	switch {
	case o.Origin == "":
		return errors.New("pipeline: origin workspace is required")
	case o.Target == "":
		return errors.New("pipeline: target project is required")
	case o.ArchiveDir == "":
		return errors.New("pipeline: archive directory is required")
	case o.Packager == nil:
		return errors.New("pipeline: packager is required")
	case o.Installer == nil:
		return errors.New("pipeline: installer is required")
	case o.Prepack != "" && o.Prepacker == nil:
		return errors.New("pipeline: prepack command given without a prepacker")
	}
	return nil
}

// checkArchiveDir rejects an archive directory that is, or contains, one of
// the project directories.
func checkArchiveDir(archiveDir string, dirs ...string) error {
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", d, err)
		}
		rel, err := filepath.Rel(archiveDir, abs)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return fmt.Errorf("pipeline: archive directory %s must not contain %s", archiveDir, abs)
		}
	}
	return nil
}

// Run packs the origin workspace and installs the archives the target
// declares. The origin manifests are restored whether packing succeeds or
// not. A packaging failure is reported in Result.PackErr and the run goes on
// to install unless Options.Strict is set. The archives and lock file are
// removed from the archive directory at the end of every run that reached the
// pack phase, unless Options.KeepArchives is set. An archive directory that
// is or contains the origin or the target is rejected.
func Run(opts Options) (res *Result, err error) {
	res = &Result{RunID: uuid.New().String(), onState: opts.OnState}
	res.enter(StateIdle)
	if err := opts.validate(); err != nil {
		return res, err
	}
	archiveDir, err := filepath.Abs(opts.ArchiveDir)
	if err != nil {
		return res, fmt.Errorf("resolving archive directory: %w", err)
	}
	if err := checkArchiveDir(archiveDir, opts.Origin, opts.Target); err != nil {
		return res, err
	}
	log.Info(log.CatPipeline, "run started", "run_id", res.RunID, "origin", opts.Origin, "target", opts.Target, "archive_dir", archiveDir)

	members, err := workspace.Resolve(opts.Origin, workspace.Options{IncludeRoot: opts.IncludeRoot})
	if err != nil {
		return res, err
	}
	reg, err := registry.Load(members)
	if err != nil {
		return res, err
	}
	res.Members = reg.Names()
	res.enter(StateOriginLoaded)

	checkDirty(res, reg)

	if opts.Prepack != "" {
		if err := opts.Prepacker.Prepack(opts.Prepack, reg.Root()); err != nil {
			return res, fmt.Errorf("prepack: %w", err)
		}
	}

	if !opts.KeepArchives {
		defer func() {
			if cerr := install.Clean(archiveDir); cerr != nil {
				err = errors.Join(err, cerr)
				return
			}
			res.enter(StateCleanedUp)
			if err == nil {
				res.enter(StateDone)
			}
		}()
	}

	var packErr error
	err = registry.WithSubstitution(reg, archiveDir, nil, func(substituted []string) error {
		res.Substituted = substituted
		res.enter(StateSubstituted)
		packErr = opts.Packager.PackAll(reg.Root(), archiveDir, reg.IncludesRoot())
		if packErr != nil {
			res.enter(StatePackFailed)
		} else {
			res.enter(StatePacked)
		}
		return nil
	})
	if err != nil {
		log.ErrorErr(log.CatPipeline, "substitution or restore failed", err, "run_id", res.RunID)
		return res, errors.Join(packErr, err)
	}
	res.enter(StateRestored)

	if opts.KeepArchives {
		writeLock(res, reg, archiveDir, opts.ToolVersion, packErr != nil)
	}

	if packErr != nil {
		if opts.Strict {
			return res, fmt.Errorf("packing %s: %w", reg.Root(), packErr)
		}
		res.PackErr = packErr
		res.warn("packing failed (%v); installing whatever archives exist", packErr)
	}

	target, err := loadTarget(opts.Target)
	if err != nil {
		return res, err
	}
	res.enter(StateTargetLoaded)

	sel := install.Select(target, reg.Available())
	res.Selected = sel.Names()
	paths, err := install.Plan(archiveDir, sel, opts.RawInstall)
	if err != nil {
		return res, err
	}
	if len(paths) > 0 {
		if err := opts.Installer.Install(opts.Target, paths); err != nil {
			return res, fmt.Errorf("installing into %s: %w", opts.Target, err)
		}
	}
	res.Installed = paths
	res.enter(StateInstalled)

	log.Info(log.CatPipeline, "run finished", "run_id", res.RunID, "installed", strings.Join(paths, ","))
	if opts.KeepArchives {
		res.enter(StateDone)
	}
	return res, nil
}

// writeLock records what the kept archives were packed from. Failing to
// write it only warns.
func writeLock(res *Result, reg *registry.Registry, archiveDir, toolVersion string, packFailed bool) {
	lf := &lock.File{
		Version:     1,
		RunID:       res.RunID,
		Origin:      reg.Root(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		ToolVersion: toolVersion,
		PackFailed:  packFailed,
		Packages:    make(map[string]*lock.Package, reg.Len()),
	}
	if git.IsRepo(reg.Root()) {
		if commit, err := git.HeadCommit(reg.Root()); err == nil {
			lf.Commit = commit
		}
	}
	for _, e := range reg.Entries() {
		_, statErr := os.Stat(registry.ArchivePath(archiveDir, e.ArchiveName))
		lf.Packages[e.Name] = &lock.Package{
			Version: e.Manifest.Version,
			Archive: e.ArchiveName,
			Missing: statErr != nil,
		}
	}
	path, err := lock.Save(archiveDir, lf)
	if err != nil {
		res.warn("lock file not written: %v", err)
		return
	}
	res.LockFile = path
}

func loadTarget(dir string) (*manifest.Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &workspace.ResolutionError{Root: dir, Err: err}
	}
	m, err := manifest.Load(manifest.PathIn(abs))
	if err != nil {
		return nil, &workspace.ResolutionError{Root: abs, Err: err}
	}
	return m, nil
}

// checkDirty warns when origin manifests already have uncommitted changes.
// The restore returns them to their pre-run content, not to the committed one.
func checkDirty(res *Result, reg *registry.Registry) {
	if !git.IsRepo(reg.Root()) {
		return
	}
	paths := make([]string, 0, reg.Len())
	for _, e := range reg.Entries() {
		paths = append(paths, e.Path)
	}
	dirty, err := git.DirtyFiles(reg.Root(), paths...)
	if err != nil {
		log.ErrorErr(log.CatGit, "checking manifest state", err, "root", reg.Root())
		return
	}
	if len(dirty) > 0 {
		res.warn("manifests with uncommitted changes: %s", strings.Join(dirty, ", "))
	}
}
