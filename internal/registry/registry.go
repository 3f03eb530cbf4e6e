package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fbkclanna/lpck/internal/log"
	"github.com/fbkclanna/lpck/internal/manifest"
	"github.com/fbkclanna/lpck/internal/workspace"
)

// ErrArchiveNameCollision is returned when two packages of one registry map
// to the same archive file name (for example "@a/b" and "a-b").
var ErrArchiveNameCollision = errors.New("archive name collision")

// ArchiveName returns the file name npm pack produces for a package:
// "@" is removed, "/" becomes "-", and "-<version>.tgz" is appended.
func ArchiveName(name, version string) string {
	s := strings.ReplaceAll(name, "@", "")
	s = strings.ReplaceAll(s, "/", "-")
	return s + "-" + version + ".tgz"
}

// AvailablePackage is what a packed registry exposes to other registries.
type AvailablePackage struct {
	Name        string
	ArchiveName string
}

// Entry is one loaded package. The Original* snapshots are taken before any
// mutation and never change afterwards.
type Entry struct {
	Name        string
	Dir         string
	Path        string
	ArchiveName string
	Manifest    *manifest.Manifest

	OriginalDependencies     manifest.Deps
	OriginalDevDependencies  manifest.Deps
	OriginalPeerDependencies manifest.Deps

	content []byte // file content at load time
	written bool   // manifest was rewritten on disk by Apply
}

// Original returns the load-time snapshot of a dependency field.
func (e *Entry) Original(f manifest.Field) *manifest.Deps {
	switch f {
	case manifest.FieldDependencies:
		return &e.OriginalDependencies
	case manifest.FieldDevDependencies:
		return &e.OriginalDevDependencies
	case manifest.FieldPeerDependencies:
		return &e.OriginalPeerDependencies
	default:
		panic(fmt.Sprintf("registry: unknown field %d", int(f)))
	}
}

// Available returns the externally visible projection of the entry.
func (e *Entry) Available() AvailablePackage {
	return AvailablePackage{Name: e.Name, ArchiveName: e.ArchiveName}
}

// Registry maps package names to loaded entries. Entries are fixed at Load;
// only manifest dependency fields change afterwards.
type Registry struct {
	root        string
	includeRoot bool
	order       []string
	entries     map[string]*Entry
}

// Load reads and validates the manifest of every member. Any malformed
// manifest aborts the load with a *manifest.LoadError.
func Load(members *workspace.Members) (*Registry, error) {
	r := &Registry{
		root:        members.Root,
		includeRoot: members.IncludeRoot,
		entries:     make(map[string]*Entry, len(members.List)),
	}
	archives := make(map[string]string, len(members.List))

	for _, mem := range members.List {
		e, err := loadEntry(mem)
		if err != nil {
			return nil, err
		}
		if other, ok := archives[e.ArchiveName]; ok {
			return nil, fmt.Errorf("%w: %s and %s both pack to %s", ErrArchiveNameCollision, other, e.Name, e.ArchiveName)
		}
		archives[e.ArchiveName] = e.Name
		r.order = append(r.order, e.Name)
		r.entries[e.Name] = e
		log.Debug(log.CatRegistry, "loaded package", "name", e.Name, "archive", e.ArchiveName)
	}
	return r, nil
}

func loadEntry(mem workspace.Member) (*Entry, error) {
	path := manifest.PathIn(mem.Dir)
	data, err := os.ReadFile(path) //nolint:gosec // workspace manifest path
	if err != nil {
		return nil, &manifest.LoadError{Path: path, Err: err}
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, &manifest.LoadError{Path: path, Err: err}
	}
	if err := manifest.Validate(m); err != nil {
		return nil, &manifest.LoadError{Path: path, Err: err}
	}
	if m.Name != mem.Name {
		return nil, &manifest.LoadError{Path: path, Err: fmt.Errorf("name changed from %q to %q during load", mem.Name, m.Name)}
	}
	return &Entry{
		Name:                     m.Name,
		Dir:                      mem.Dir,
		Path:                     path,
		ArchiveName:              ArchiveName(m.Name, m.Version),
		Manifest:                 m,
		OriginalDependencies:     m.Dependencies.Clone(),
		OriginalDevDependencies:  m.DevDependencies.Clone(),
		OriginalPeerDependencies: m.PeerDependencies.Clone(),
		content:                  data,
	}, nil
}

// Root returns the workspace root the registry was loaded from.
func (r *Registry) Root() string { return r.root }

// IncludesRoot reports whether the root package is one of the entries.
func (r *Registry) IncludesRoot() bool { return r.includeRoot }

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.order) }

// Names returns package names in load order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the entry for name.
func (r *Registry) Get(name string) (*Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Entries returns all entries in load order.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, len(r.order))
	for i, n := range r.order {
		out[i] = r.entries[n]
	}
	return out
}

// Available returns the (name, archive) pairs of every entry in load order.
func (r *Registry) Available() []AvailablePackage {
	out := make([]AvailablePackage, len(r.order))
	for i, n := range r.order {
		out[i] = r.entries[n].Available()
	}
	return out
}
