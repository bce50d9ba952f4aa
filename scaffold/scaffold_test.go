package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewData(t *testing.T) {
	d := NewData("/home/dev/meu-blog/", "https://meu-blog.cdn.prismic.io/api/v2")
	assert.Equal(t, "meu-blog", d.ProjectName)
	assert.Equal(t, "Meu Blog", d.SiteName)
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "meu-blog")
	data := NewData(dir, "https://meu-blog.cdn.prismic.io/api/v2")

	created, err := Write(dir, data, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, ".env.example"),
		filepath.Join(dir, "pubfront.yaml"),
		filepath.Join(dir, "public", "README.md"),
	}, created)

	b, err := os.ReadFile(filepath.Join(dir, "pubfront.yaml"))
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, yaml.Unmarshal(b, &cfg))
	assert.Equal(t, "Meu Blog", cfg["name"])
	assert.Equal(t, "https://meu-blog.cdn.prismic.io/api/v2", cfg["api_endpoint"])
	assert.Equal(t, "placeholder", cfg["fallback_mode"])
}

func TestWriteRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	data := NewData(dir, "https://x.cdn.prismic.io/api/v2")

	_, err := Write(dir, data, false)
	require.NoError(t, err)

	_, err = Write(dir, data, false)
	assert.ErrorContains(t, err, "already exists")

	_, err = Write(dir, data, true)
	assert.NoError(t, err)
}

func TestWriteChecksEveryFileFirst(t *testing.T) {
	dir := t.TempDir()
	data := NewData(dir, "https://x.cdn.prismic.io/api/v2")
	existing := filepath.Join(dir, "pubfront.yaml")
	require.NoError(t, os.WriteFile(existing, []byte("name: mine\n"), 0o644))

	created, err := Write(dir, data, false)
	assert.ErrorContains(t, err, "already exists")
	assert.Empty(t, created)

	assert.NoFileExists(t, filepath.Join(dir, ".env.example"))
	assert.NoDirExists(t, filepath.Join(dir, "public"))
	b, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "name: mine\n", string(b))
}
