// Package config handles lpck's base directory, environment overrides and
// the preset file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/viper"

	"github.com/fbkclanna/lpck/internal/log"
)

const (
	DirName        = ".lpck"
	FileName       = "config.json"
	ArchiveDirName = "packages"
	LogFileName    = "debug.log"
)

// ErrNoConfig is returned by Load when the preset file does not exist.
var ErrNoConfig = errors.New("no preset file")

// Preset names an origin workspace and an optional prepack command.
type Preset struct {
	Name    string `json:"name" mapstructure:"name"`
	Path    string `json:"path" mapstructure:"path"`
	Prepack string `json:"prepack,omitempty" mapstructure:"prepack"`
}

// File is the content of config.json.
type File struct {
	Presets []Preset `json:"presets" mapstructure:"presets"`
}

// Env holds the LPCK_* environment overrides.
type Env struct {
	Home  string // LPCK_HOME replaces ~/.lpck as the base directory
	Npm   string // LPCK_NPM names the npm executable
	Debug bool   // LPCK_DEBUG enables the debug log
}

// LoadEnv reads the LPCK_* environment variables.
func LoadEnv() Env {
	v := viper.New()
	v.SetEnvPrefix("lpck")
	v.AutomaticEnv()
	return Env{
		Home:  v.GetString("home"),
		Npm:   v.GetString("npm"),
		Debug: v.GetBool("debug"),
	}
}

// BaseDir returns the directory that holds archives, the preset file and
// the debug log. With local set it is <origin>/.lpck; otherwise env.Home or
// ~/.lpck.
func BaseDir(env Env, origin string, local bool) (string, error) {
	if local {
		if origin == "" {
			return "", errors.New("--local requires an origin workspace")
		}
		abs, err := filepath.Abs(origin)
		if err != nil {
			return "", err
		}
		return filepath.Join(abs, DirName), nil
	}
	if env.Home != "" {
		return filepath.Abs(expandHome(env.Home))
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Load reads and validates the preset file at path. Relative and ~ preset
// paths are resolved against the file's directory. A missing file yields
// ErrNoConfig.
func Load(path string) (*File, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoConfig, path)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range f.Presets {
		f.Presets[i].Path = ResolvePath(dir, f.Presets[i].Path)
	}
	log.Debug(log.CatConfig, "presets loaded", "path", path, "count", len(f.Presets))
	return &f, nil
}

// Validate checks that every preset has a unique non-empty name and a path.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Presets))
	for i, p := range f.Presets {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("preset %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("preset %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if strings.TrimSpace(p.Path) == "" {
			return fmt.Errorf("preset %q: path is required", p.Name)
		}
	}
	return nil
}

// Find returns the preset called name.
func (f *File) Find(name string) (Preset, bool) {
	for _, p := range f.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Suggest returns preset names that fuzzy-match name, best first.
func (f *File) Suggest(name string) []string {
	matches := fuzzy.Find(name, f.Names())
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}

// Names returns the preset names in file order.
func (f *File) Names() []string {
	out := make([]string, len(f.Presets))
	for i, p := range f.Presets {
		out[i] = p.Name
	}
	return out
}

// Add appends p, rejecting a duplicate name.
func (f *File) Add(p Preset) error {
	if _, ok := f.Find(p.Name); ok {
		return fmt.Errorf("preset %q already exists", p.Name)
	}
	f.Presets = append(f.Presets, p)
	return f.Validate()
}

// Save writes f to path as indented JSON, creating parent directories.
func Save(path string, f *File) error {
	if f.Presets == nil {
		f = &File{Presets: []Preset{}}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding presets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil { //nolint:gosec // config dir
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil { //nolint:gosec // config file is not secret
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Debug(log.CatConfig, "presets saved", "path", path, "count", len(f.Presets))
	return nil
}

// Init creates an empty preset file at path unless one exists. It reports
// whether a file was created.
func Init(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := Save(path, &File{}); err != nil {
		return false, err
	}
	return true, nil
}

// ResolvePath expands a leading ~ and makes p absolute relative to dir.
func ResolvePath(dir, p string) string {
	p = expandHome(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	return filepath.Clean(p)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
