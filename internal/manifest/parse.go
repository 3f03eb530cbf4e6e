package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
)

// FileName is the manifest file name inside a package directory.
const FileName = "package.json"

// LoadError reports a manifest that could not be read or is malformed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading manifest %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PathIn returns the manifest path for a package directory.
func PathIn(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads and parses a package.json file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a workspace manifest
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	m, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return m, nil
}

// Parse parses package.json content. It does not require a name or version;
// use Validate for packages that are about to be packed.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{layout: detectLayout(data)}
	err := decodeObject(data, func(key string, raw json.RawMessage) error {
		m.fields = append(m.fields, rawField{key: key, value: raw})
		return m.decodeField(key, raw)
	})
	if err != nil {
		return nil, fmt.Errorf("parsing manifest JSON: %w", err)
	}
	return m, nil
}

func (m *Manifest) decodeField(key string, raw json.RawMessage) error {
	switch key {
	case "name":
		if err := json.Unmarshal(raw, &m.Name); err != nil {
			return fmt.Errorf("name must be a string")
		}
	case "version":
		if err := json.Unmarshal(raw, &m.Version); err != nil {
			return fmt.Errorf("version must be a string")
		}
	case "private":
		// npm tolerates non-boolean values here; treat them as not private.
		_ = json.Unmarshal(raw, &m.Private)
	case "workspaces":
		ws, err := parseWorkspaces(raw)
		if err != nil {
			return fmt.Errorf("workspaces: %w", err)
		}
		m.Workspaces = ws
	default:
		for _, f := range Fields {
			if key == f.Key() {
				if err := m.Deps(f).UnmarshalJSON(raw); err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
			}
		}
	}
	return nil
}

// parseWorkspaces handles both the array form ["packages/*"] and the
// object form {"packages": ["packages/*"]}.
func parseWorkspaces(raw json.RawMessage) ([]string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("must be an array or an object with a packages array")
	}
	return obj.Packages, nil
}

// Validate checks that a manifest can be packed: it needs a name and a
// semver version.
func Validate(m *Manifest) error {
	if m.Name == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest %s: version is required", m.Name)
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("manifest %s: invalid version %q: %w", m.Name, m.Version, err)
	}
	return nil
}

// Marshal encodes the manifest in the indentation, line ending and final
// newline of the parsed document; a manifest built in code gets two-space
// indentation and a trailing LF. Keys keep their original order. Dependency
// fields are re-encoded only when their content changed since parsing.
func Marshal(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]bool, len(m.fields))
	for i, rf := range m.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, rf.key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		value, err := m.fieldValue(rf)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
		written[rf.key] = true
	}
	for _, f := range Fields {
		d := m.Deps(f)
		if written[f.Key()] || d.Len() == 0 {
			continue
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, f.Key()); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		value, err := d.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')

	var compact bytes.Buffer
	if err := json.Compact(&compact, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	return m.layout.apply(compact.Bytes())
}

func (l layout) apply(compact []byte) ([]byte, error) {
	if !l.parsed {
		l = layout{indent: "  ", newline: "\n", final: true}
	}
	out := compact
	if !l.compact {
		var buf bytes.Buffer
		if err := json.Indent(&buf, compact, "", l.indent); err != nil {
			return nil, fmt.Errorf("marshaling manifest: %w", err)
		}
		out = buf.Bytes()
		if l.newline != "\n" {
			out = bytes.ReplaceAll(out, []byte("\n"), []byte(l.newline))
		}
	}
	if l.final {
		out = append(out, l.newline...)
	}
	return out, nil
}

func (m *Manifest) fieldValue(rf rawField) ([]byte, error) {
	for _, f := range Fields {
		if rf.key != f.Key() {
			continue
		}
		var parsed Deps
		if err := parsed.UnmarshalJSON(rf.value); err != nil {
			return nil, err
		}
		if d := m.Deps(f); !parsed.Equal(d) {
			return d.MarshalJSON()
		}
	}
	return rf.value, nil
}

// Save writes the manifest to path, keeping the file mode of an existing file.
func Save(path string, m *Manifest) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// WriteFile replaces the manifest at path with data, keeping the file mode of
// an existing file.
func WriteFile(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// decodeObject walks the top-level keys of a JSON object in document order.
func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected an object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after the top-level object")
	}
	return nil
}
