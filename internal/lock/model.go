package lock

// FileName is the record written next to kept archives.
const FileName = "lpck.lock.yaml"

// File represents lpck.lock.yaml.
type File struct {
	Version     int                 `yaml:"version"`
	RunID       string              `yaml:"run_id"`
	Origin      string              `yaml:"origin"`
	Commit      string              `yaml:"commit,omitempty"`
	GeneratedAt string              `yaml:"generated_at"`
	ToolVersion string              `yaml:"tool_version"`
	PackFailed  bool                `yaml:"pack_failed,omitempty"`
	Packages    map[string]*Package `yaml:"packages"`
}

// Package records one packed workspace member.
type Package struct {
	Version string `yaml:"version"`
	Archive string `yaml:"archive"`
	// Missing is set when packing did not produce the archive.
	Missing bool `yaml:"missing,omitempty"`
}
