package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644)) //nolint:gosec // test file
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
  "presets": [
    {"name": "ui", "path": "/work/ui", "prepack": "npm run build"},
    {"name": "core", "path": "core"}
  ]
}`)

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Presets, 2)
	assert.Equal(t, []string{"ui", "core"}, f.Names())
	assert.Equal(t, Preset{Name: "ui", Path: "/work/ui", Prepack: "npm run build"}, f.Presets[0])
	assert.Equal(t, filepath.Join(filepath.Dir(path), "core"), f.Presets[1].Path)

	p, ok := f.Find("core")
	assert.True(t, ok)
	assert.Empty(t, p.Prepack)
	_, ok = f.Find("missing")
	assert.False(t, ok)
}

func TestSuggest(t *testing.T) {
	f := &File{Presets: []Preset{
		{Name: "ui-kit", Path: "/a"},
		{Name: "core", Path: "/b"},
		{Name: "ui-icons", Path: "/c"},
	}}
	got := f.Suggest("uikit")
	require.NotEmpty(t, got)
	assert.Equal(t, "ui-kit", got[0])
	assert.Empty(t, f.Suggest("zzz"))
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.ErrorIs(t, err, ErrNoConfig)
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax", `{"presets": [`, "reading"},
		{"missing name", `{"presets": [{"path": "/x"}]}`, "name is required"},
		{"missing path", `{"presets": [{"name": "x"}]}`, "path is required"},
		{"duplicate", `{"presets": [{"name": "x", "path": "/a"}, {"name": "x", "path": "/b"}]}`, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_emptyFile(t *testing.T) {
	f, err := Load(writeConfig(t, `{"presets": []}`))
	require.NoError(t, err)
	assert.Empty(t, f.Presets)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	f := &File{}
	require.NoError(t, f.Add(Preset{Name: "a", Path: "/src/a", Prepack: "make && make test"}))
	require.Error(t, f.Add(Preset{Name: "a", Path: "/src/other"}))
	require.NoError(t, Save(path, f))

	data, err := os.ReadFile(path) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Contains(t, string(data), `"prepack": "make && make test"`)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.Presets, got.Presets)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), DirName, FileName)

	created, err := Init(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.JSONEq(t, `{"presets": []}`, readString(t, path))

	created, err = Init(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestBaseDir(t *testing.T) {
	origin := t.TempDir()

	dir, err := BaseDir(Env{}, origin, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(origin, DirName), dir)

	custom := t.TempDir()
	dir, err = BaseDir(Env{Home: custom}, origin, false)
	require.NoError(t, err)
	assert.Equal(t, custom, dir)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	dir, err = BaseDir(Env{}, "", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DirName), dir)

	_, err = BaseDir(Env{}, "", true)
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("LPCK_HOME", "/tmp/lpck-home")
	t.Setenv("LPCK_NPM", "/opt/npm")
	t.Setenv("LPCK_DEBUG", "true")

	env := LoadEnv()
	assert.Equal(t, Env{Home: "/tmp/lpck-home", Npm: "/opt/npm", Debug: true}, env)
}

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "/abs/x", ResolvePath("/cfg", "/abs/x"))
	assert.Equal(t, "/cfg/rel", ResolvePath("/cfg", "rel"))
	assert.Equal(t, "/rel", ResolvePath("/cfg", "../rel"))
	assert.Equal(t, filepath.Join(home, "src"), ResolvePath("/cfg", "~/src"))
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test file
	require.NoError(t, err)
	return string(data)
}
