package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/fbkclanna/lpck/internal/log"
	"github.com/fbkclanna/lpck/internal/manifest"
)

// ArchivePath returns the path of an archive inside archiveDir.
func ArchivePath(archiveDir, archiveName string) string {
	return filepath.Join(archiveDir, archiveName)
}

// Apply rewrites, across all entries, every dependency, devDependency and
// peerDependency whose key names another known package so that its value is
// that package's archive path. Known packages are the registry's own entries
// plus available, which lets a different registry be rewritten against an
// already packed origin. A manifest is written back only when one of its
// values changed. It returns the sorted names that were substituted.
//
// Apply does not check whether a value already is an archive path; running
// it twice without Revert in between rewrites the same keys again, and a
// registry loaded from already rewritten manifests snapshots the rewritten
// values.
func Apply(reg *Registry, archiveDir string, available ...AvailablePackage) ([]string, error) {
	known := make(map[string]string, reg.Len()+len(available))
	for _, e := range reg.Entries() {
		known[e.Name] = e.ArchiveName
	}
	for _, a := range available {
		if _, ok := known[a.Name]; !ok {
			known[a.Name] = a.ArchiveName
		}
	}

	substituted := make(map[string]bool)
	for _, e := range reg.Entries() {
		changed := false
		for _, f := range manifest.Fields {
			deps := e.Manifest.Deps(f)
			for _, key := range deps.Keys() {
				if key == e.Name {
					continue
				}
				archive, ok := known[key]
				if !ok {
					continue
				}
				substituted[key] = true
				path := ArchivePath(archiveDir, archive)
				if v, _ := deps.Get(key); v != path {
					deps.Set(key, path)
					changed = true
					log.Debug(log.CatRegistry, "substituted reference", "package", e.Name, "field", f, "dependency", key, "from", v, "to", path)
				}
			}
		}
		if !changed {
			continue
		}
		if err := manifest.Save(e.Path, e.Manifest); err != nil {
			return sortedKeys(substituted), fmt.Errorf("substituting references in %s: %w", e.Name, err)
		}
		e.written = true
	}

	names := sortedKeys(substituted)
	log.Info(log.CatRegistry, "substitution applied", "root", reg.Root(), "substituted", strings.Join(names, ","))
	return names, nil
}

// RestoreFailure is one manifest that could not be reverted.
type RestoreFailure struct {
	Name string
	Path string
	Err  error
}

// RestoreError reports manifests left in their rewritten state.
type RestoreError struct {
	Failures []RestoreFailure
}

func (e *RestoreError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s (%s): %v", f.Name, f.Path, f.Err)
	}
	return "restoring manifests failed, these files still contain archive paths: " + strings.Join(parts, "; ")
}

func (e *RestoreError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Revert writes the load-time snapshot of every originally non-empty
// dependency field back into its manifest. Originally empty fields are left
// as they are, since Apply never adds keys. A fully restored manifest gets its
// load-time bytes back. Every entry is attempted; write
// failures are collected into a *RestoreError.
func Revert(reg *Registry) error {
	var failures []RestoreFailure
	for _, e := range reg.Entries() {
		changed := false
		for _, f := range manifest.Fields {
			orig := e.Original(f)
			if orig.Len() == 0 {
				continue
			}
			if cur := e.Manifest.Deps(f); !cur.Equal(orig) {
				*cur = orig.Clone()
				changed = true
			}
		}
		if !changed && !e.written {
			continue
		}
		if err := restore(e); err != nil {
			log.ErrorErr(log.CatRegistry, "restore failed", err, "package", e.Name, "path", e.Path)
			failures = append(failures, RestoreFailure{Name: e.Name, Path: e.Path, Err: err})
			continue
		}
		e.written = false
		verifyRestored(e)
	}
	if len(failures) > 0 {
		return &RestoreError{Failures: failures}
	}
	log.Info(log.CatRegistry, "manifests restored", "root", reg.Root())
	return nil
}

// restore writes the load-time bytes back when every dependency field
// matches its snapshot, and re-encodes the manifest otherwise.
func restore(e *Entry) error {
	for _, f := range manifest.Fields {
		if !e.Manifest.Deps(f).Equal(e.Original(f)) {
			return manifest.Save(e.Path, e.Manifest)
		}
	}
	return manifest.WriteFile(e.Path, e.content)
}

// verifyRestored compares the manifest on disk with its load-time content
// and logs a diff when they differ.
func verifyRestored(e *Entry) {
	now, err := os.ReadFile(e.Path) //nolint:gosec // workspace manifest path
	if err != nil {
		log.ErrorErr(log.CatRegistry, "reading restored manifest", err, "path", e.Path)
		return
	}
	if bytes.Equal(now, e.content) {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(e.content), string(now), false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	log.Warn(log.CatRegistry, "restored manifest differs from original", "path", e.Path, "diff", dmp.DiffPrettyText(diffs))
}

// Mutation is the token for a substituted registry. Revert undoes the
// substitution; calls after the first return the first result.
type Mutation struct {
	reg         *Registry
	substituted []string
	reverted    bool
	revertErr   error
}

// Substitute applies the rewrite and returns its token. The token is
// non-nil even when Apply fails part way, so the caller can always revert.
func Substitute(reg *Registry, archiveDir string, available ...AvailablePackage) (*Mutation, error) {
	names, err := Apply(reg, archiveDir, available...)
	return &Mutation{reg: reg, substituted: names}, err
}

// Substituted returns the names whose references were rewritten.
func (m *Mutation) Substituted() []string {
	out := make([]string, len(m.substituted))
	copy(out, m.substituted)
	return out
}

// Revert restores the registry once.
func (m *Mutation) Revert() error {
	if m.reverted {
		return m.revertErr
	}
	m.reverted = true
	m.revertErr = Revert(m.reg)
	return m.revertErr
}

// WithSubstitution applies the rewrite, runs fn and reverts exactly once,
// whether Apply failed, fn returned an error or fn panicked. The returned
// error joins the failure of Apply or fn with any *RestoreError.
func WithSubstitution(reg *Registry, archiveDir string, available []AvailablePackage, fn func(substituted []string) error) (err error) {
	mut, err := Substitute(reg, archiveDir, available...)
	defer func() {
		if rerr := mut.Revert(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	if err != nil {
		return err
	}
	return fn(mut.Substituted())
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
