package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FileNotFound(t *testing.T) {
	f, err := Load("/nonexistent/path/trees.yaml")

	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeFile(t, "trees.yaml", `
trees:
  - url: https://github.com/org/repo/tree/main/docs
    exclude:
      - "*.png"
  - url: https://github.com/org/other.git
    output: vendor/other
options:
  output: ./out
  continue_on_error: true
`)

	f, err := Load(path)
	require.NoError(t, err)

	require.Len(t, f.Trees, 2)
	assert.Equal(t, []string{"*.png"}, f.Trees[0].Exclude)
	assert.Equal(t, "org-repo", f.Trees[0].Dir())
	assert.Equal(t, "vendor/other", f.Trees[1].Dir())
	assert.True(t, f.Options.ContinueOnError)
	assert.Equal(t, "./out", f.Options.Output)
	assert.Equal(t, 4, f.Options.Concurrency)
}

func TestLoad_ValidJSON(t *testing.T) {
	path := writeFile(t, "trees.JSON", `{
		"trees": [{"url": "https://github.com/org/repo"}],
		"options": {"concurrency": 10}
	}`)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/org/repo", f.Trees[0].URL)
	assert.Equal(t, 10, f.Options.Concurrency)
	assert.Equal(t, "./trees", f.Options.Output)
	assert.False(t, f.Options.ContinueOnError)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		ext     string
		wantErr error
		msg     string
	}{
		{name: "unsupported extension", data: "trees: []", ext: ".toml", wantErr: ErrUnsupportedExt},
		{name: "invalid yaml", data: "trees: [", ext: ".yaml", wantErr: ErrInvalidFormat},
		{name: "invalid json", data: "{", ext: ".json", wantErr: ErrInvalidFormat},
		{name: "no trees", data: "options:\n  output: x\n", ext: ".yml", wantErr: ErrNoTrees},
		{name: "empty url", data: "trees:\n  - url: ' '\n", ext: ".yaml", wantErr: ErrEmptyURL},
		{name: "no owner in url", data: "trees:\n  - url: https://github.com/org\n", ext: ".yaml", msg: "invalid output directory"},
		{name: "escaping output", data: "trees:\n  - url: https://github.com/a/b\n    output: ../x\n", ext: ".yaml", msg: "invalid output directory"},
		{
			name: "duplicate output",
			data: "trees:\n  - url: https://github.com/a/b/tree/main\n  - url: https://github.com/a/b/tree/dev\n",
			ext:  ".yaml",
			msg:  "already used by tree 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.data), tt.ext)

			assert.Nil(t, f)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestTree_Dir(t *testing.T) {
	tests := []struct {
		tree Tree
		want string
	}{
		{Tree{URL: "https://github.com/org/repo"}, "org-repo"},
		{Tree{URL: "https://github.com/org/repo.git"}, "org-repo"},
		{Tree{URL: "https://ghe.example.com/org/repo/tree/v1/docs"}, "org-repo"},
		{Tree{URL: "https://github.com/org/repo", Output: "a\\b/"}, "a/b"},
		{Tree{URL: "https://github.com/"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tree.Dir())
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.False(t, opts.ContinueOnError)
	assert.Equal(t, "./trees", opts.Output)
	assert.Equal(t, 4, opts.Concurrency)
}
