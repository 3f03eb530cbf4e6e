// Package install decides which archives a consumer project receives.
package install

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fbkclanna/lpck/internal/lock"
	"github.com/fbkclanna/lpck/internal/log"
	"github.com/fbkclanna/lpck/internal/manifest"
	"github.com/fbkclanna/lpck/internal/registry"
)

// Installer installs archive files into a target project.
type Installer interface {
	Install(targetDir string, archives []string) error
}

// Selection is the result of matching a target against available packages.
type Selection struct {
	Packages []registry.AvailablePackage
	// HasDependencies is false when the target declares no dependencies
	// field at all. It is informational only.
	HasDependencies bool
}

// Names returns the selected package names.
func (s Selection) Names() []string {
	out := make([]string, len(s.Packages))
	for i, p := range s.Packages {
		out[i] = p.Name
	}
	return out
}

// Select returns the available packages whose names the target declares in
// its dependencies field, in available order.
func Select(target *manifest.Manifest, available []registry.AvailablePackage) Selection {
	sel := Selection{HasDependencies: target.Has(manifest.FieldDependencies.Key())}
	for _, a := range available {
		if _, ok := target.Dependencies.Get(a.Name); ok {
			sel.Packages = append(sel.Packages, a)
		}
	}
	switch {
	case !sel.HasDependencies:
		log.Info(log.CatInstall, "target has no dependencies field", "target", target.Name)
	case len(sel.Packages) == 0:
		log.Info(log.CatInstall, "target declares none of the packed packages", "target", target.Name)
	default:
		log.Info(log.CatInstall, "selected packages", "target", target.Name, "packages", strings.Join(sel.Names(), ","))
	}
	return sel
}

// Plan returns the archive paths to install. In raw mode every archive in
// archiveDir is used and the selection is ignored.
func Plan(archiveDir string, sel Selection, raw bool) ([]string, error) {
	if raw {
		return ListArchives(archiveDir)
	}
	paths := make([]string, len(sel.Packages))
	for i, p := range sel.Packages {
		paths[i] = registry.ArchivePath(archiveDir, p.ArchiveName)
	}
	return paths, nil
}

// ListArchives returns every .tgz file in dir, sorted. A missing directory
// yields no archives.
func ListArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing archives: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tgz") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Clean removes the archives and the lock file lpck wrote into dir. Other
// entries and dir itself are left alone.
func Clean(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cleaning archive directory: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !ownedByRun(e) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("cleaning archive directory: %w", err)
		}
		removed++
	}
	log.Debug(log.CatInstall, "archive directory cleaned", "dir", dir, "removed", removed, "kept", len(entries)-removed)
	return nil
}

func ownedByRun(e os.DirEntry) bool {
	if !e.Type().IsRegular() {
		return false
	}
	return strings.HasSuffix(e.Name(), ".tgz") || e.Name() == lock.FileName
}
