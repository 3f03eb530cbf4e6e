package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fbkclanna/lpck/internal/log"
	"github.com/fbkclanna/lpck/internal/manifest"
)

// PnpmFile is the pnpm workspace definition file name.
const PnpmFile = "pnpm-workspace.yaml"

// ResolutionError reports a workspace root that cannot be resolved.
type ResolutionError struct {
	Root string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving workspace %s: %v", e.Root, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Member is a package directory that belongs to a workspace.
type Member struct {
	Name string
	Dir  string
}

// Members is the ordered result of resolving a workspace root.
type Members struct {
	Root        string
	RootName    string
	IncludeRoot bool
	List        []Member
}

// Names returns member names in order.
func (m *Members) Names() []string {
	out := make([]string, len(m.List))
	for i, mem := range m.List {
		out[i] = mem.Name
	}
	return out
}

// Options configures Resolve.
type Options struct {
	// IncludeRoot adds the root package itself as the first member.
	IncludeRoot bool
}

type pnpmWorkspace struct {
	Packages []string `yaml:"packages"`
}

// Resolve enumerates the member packages of the workspace rooted at root.
// It reads member globs from the root package.json "workspaces" field and
// from pnpm-workspace.yaml. It never writes to disk.
func Resolve(root string, opts Options) (*Members, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &ResolutionError{Root: root, Err: err}
	}

	rootManifest, err := manifest.Load(manifest.PathIn(abs))
	if err != nil {
		return nil, &ResolutionError{Root: abs, Err: err}
	}

	patterns := append([]string(nil), rootManifest.Workspaces...)
	pnpm, err := loadPnpmPatterns(abs)
	if err != nil {
		return nil, &ResolutionError{Root: abs, Err: err}
	}
	patterns = append(patterns, pnpm...)

	dirs, err := expandPatterns(abs, patterns)
	if err != nil {
		return nil, &ResolutionError{Root: abs, Err: err}
	}

	ms := &Members{Root: abs, RootName: rootManifest.Name, IncludeRoot: opts.IncludeRoot}
	seen := make(map[string]string)
	add := func(name, dir string) error {
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("duplicate package name %q in %s and %s", name, prev, dir)
		}
		seen[name] = dir
		ms.List = append(ms.List, Member{Name: name, Dir: dir})
		return nil
	}

	if opts.IncludeRoot {
		if rootManifest.Name == "" {
			return nil, &ResolutionError{Root: abs, Err: fmt.Errorf("root package has no name")}
		}
		if err := add(rootManifest.Name, abs); err != nil {
			return nil, &ResolutionError{Root: abs, Err: err}
		}
	}

	for _, dir := range dirs {
		name, err := readName(dir)
		if err != nil {
			// A malformed member manifest is a load error, not a resolution error.
			return nil, err
		}
		if name == "" {
			log.Debug(log.CatWorkspace, "skipping unnamed member", "dir", dir)
			continue
		}
		if err := add(name, dir); err != nil {
			return nil, &ResolutionError{Root: abs, Err: err}
		}
	}

	log.Debug(log.CatWorkspace, "resolved workspace", "root", abs, "members", len(ms.List))
	return ms, nil
}

func loadPnpmPatterns(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, PnpmFile)) //nolint:gosec // path inside workspace root
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", PnpmFile, err)
	}
	var pw pnpmWorkspace
	if err := yaml.Unmarshal(data, &pw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", PnpmFile, err)
	}
	return pw.Packages, nil
}

// expandPatterns expands member globs relative to root. Patterns starting
// with "!" exclude directories matched earlier. Only directories containing
// a package.json are returned; order follows the patterns, then path.
func expandPatterns(root string, patterns []string) ([]string, error) {
	var result []string
	seen := make(map[string]bool)
	excluded := make(map[string]bool)

	for _, p := range patterns {
		if rest, ok := strings.CutPrefix(p, "!"); ok {
			matches, err := globDirs(root, rest)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				excluded[m] = true
			}
		}
	}

	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			continue
		}
		matches, err := globDirs(root, p)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if seen[m] || excluded[m] || m == root {
				continue
			}
			seen[m] = true
			result = append(result, m)
		}
	}
	return result, nil
}

func globDirs(root, pattern string) ([]string, error) {
	pattern = strings.TrimSuffix(filepath.FromSlash(pattern), string(filepath.Separator))
	if filepath.IsAbs(pattern) {
		return nil, fmt.Errorf("workspace pattern must be relative: %s", pattern)
	}
	// "**" matches a single path segment only.
	pattern = strings.ReplaceAll(pattern, "**", "*")
	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid workspace pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var dirs []string
	for _, m := range matches {
		info, err := os.Stat(manifest.PathIn(m))
		if err != nil || info.IsDir() {
			continue
		}
		dirs = append(dirs, filepath.Clean(m))
	}
	return dirs, nil
}

func readName(dir string) (string, error) {
	m, err := manifest.Load(manifest.PathIn(dir))
	if err != nil {
		return "", err
	}
	return m.Name, nil
}
