package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field identifies one of the dependency-like fields of a package.json.
type Field int

const (
	FieldDependencies Field = iota
	FieldDevDependencies
	FieldPeerDependencies
)

// Fields lists every dependency field in the order they are processed.
var Fields = []Field{FieldDependencies, FieldDevDependencies, FieldPeerDependencies}

// Key returns the package.json key for the field.
func (f Field) Key() string {
	switch f {
	case FieldDependencies:
		return "dependencies"
	case FieldDevDependencies:
		return "devDependencies"
	case FieldPeerDependencies:
		return "peerDependencies"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

func (f Field) String() string { return f.Key() }

// Manifest is a package.json document. Name, Version and the dependency
// fields are decoded; every other key is carried verbatim so that Save
// writes back the document with its original key order.
type Manifest struct {
	Name             string
	Version          string
	Private          bool
	Workspaces       []string
	Dependencies     Deps
	DevDependencies  Deps
	PeerDependencies Deps

	fields []rawField
	layout layout
}

// layout is the whitespace style of a parsed document. The zero value means
// two-space indentation, LF line endings and a trailing newline.
type layout struct {
	parsed  bool
	compact bool
	indent  string
	newline string
	final   bool
}

func detectLayout(data []byte) layout {
	l := layout{parsed: true, indent: "  ", newline: "\n"}
	if bytes.Contains(data, []byte("\r\n")) {
		l.newline = "\r\n"
	}
	l.final = bytes.HasSuffix(data, []byte("\n"))
	body := bytes.TrimRight(data, " \t\r\n")
	start := bytes.IndexByte(body, '{') + 1
	nl := bytes.IndexByte(body[start:], '\n')
	if nl < 0 {
		l.compact = true
		return l
	}
	rest := body[start+nl+1:]
	end := 0
	for end < len(rest) && (rest[end] == ' ' || rest[end] == '\t') {
		end++
	}
	if end > 0 {
		l.indent = string(rest[:end])
	}
	return l
}

type rawField struct {
	key   string
	value json.RawMessage
}

// Deps returns a pointer to the given dependency field.
func (m *Manifest) Deps(f Field) *Deps {
	switch f {
	case FieldDependencies:
		return &m.Dependencies
	case FieldDevDependencies:
		return &m.DevDependencies
	case FieldPeerDependencies:
		return &m.PeerDependencies
	default:
		panic(fmt.Sprintf("manifest: unknown field %d", int(f)))
	}
}

// Has reports whether the key was present in the parsed document.
func (m *Manifest) Has(key string) bool {
	for _, rf := range m.fields {
		if rf.key == key {
			return true
		}
	}
	return false
}

// Deps is an ordered mapping from package name to a version specifier or
// local path. The zero value is an empty mapping ready to use.
type Deps struct {
	keys []string
	vals map[string]string
}

// DepsOf builds a Deps from alternating name, specifier pairs.
func DepsOf(pairs ...string) Deps {
	var d Deps
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(pairs[i], pairs[i+1])
	}
	return d
}

// Len returns the number of entries.
func (d *Deps) Len() int { return len(d.keys) }

// Keys returns the entry names in document order.
func (d *Deps) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the specifier for name.
func (d *Deps) Get(name string) (string, bool) {
	v, ok := d.vals[name]
	return v, ok
}

// Set updates the specifier for name. New names are appended.
func (d *Deps) Set(name, spec string) {
	if d.vals == nil {
		d.vals = make(map[string]string)
	}
	if _, ok := d.vals[name]; !ok {
		d.keys = append(d.keys, name)
	}
	d.vals[name] = spec
}

// Clone returns a deep copy.
func (d *Deps) Clone() Deps {
	c := Deps{keys: d.Keys()}
	if d.vals != nil {
		c.vals = make(map[string]string, len(d.vals))
		for k, v := range d.vals {
			c.vals[k] = v
		}
	}
	return c
}

// Equal reports whether both mappings hold the same entries in the same order.
func (d *Deps) Equal(o *Deps) bool {
	if len(d.keys) != len(o.keys) {
		return false
	}
	for i, k := range d.keys {
		if o.keys[i] != k || o.vals[k] != d.vals[k] {
			return false
		}
	}
	return true
}

// Map returns the entries as a plain map.
func (d *Deps) Map() map[string]string {
	m := make(map[string]string, len(d.keys))
	for _, k := range d.keys {
		m[k] = d.vals[k]
	}
	return m
}

// MarshalJSON encodes the mapping preserving entry order.
func (d Deps) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(&buf, d.vals[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object preserving entry order.
func (d *Deps) UnmarshalJSON(data []byte) error {
	*d = Deps{}
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	return decodeObject(data, func(key string, raw json.RawMessage) error {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%q: value must be a string", key)
		}
		d.Set(key, v)
		return nil
	})
}

// writeString encodes s as a JSON string without HTML escaping, so that
// specifiers such as ">=1.0.0 <2" survive unchanged.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
