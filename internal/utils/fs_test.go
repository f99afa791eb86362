package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeJoin(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	tests := []struct {
		name    string
		rel     string
		want    string
		wantErr bool
	}{
		{name: "simple file", rel: "README.md", want: filepath.Join(base, "README.md")},
		{name: "nested file", rel: "docs/guide/index.md", want: filepath.Join(base, "docs", "guide", "index.md")},
		{name: "backslashes", rel: `docs\index.md`, want: filepath.Join(base, "docs", "index.md")},
		{name: "dot dot is clamped to base", rel: "../../etc/passwd", want: filepath.Join(base, "etc", "passwd")},
		{name: "empty", rel: "", wantErr: true},
		{name: "dot", rel: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoin(base, tt.rel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	t.Run("creates directory", func(t *testing.T) {
		tempDir := t.TempDir()
		testPath := filepath.Join(tempDir, "subdir", "file.txt")

		err := EnsureDir(testPath)
		require.NoError(t, err)

		info, err := os.Stat(filepath.Dir(testPath))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("existing directory", func(t *testing.T) {
		tempDir := t.TempDir()
		testPath := filepath.Join(tempDir, "file.txt")

		require.NoError(t, EnsureDir(testPath))
		require.NoError(t, EnsureDir(testPath))
	})
}

func TestExpandPath(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"home directory with slash", "~/test", filepath.Join(home, "test")},
		{"home directory only", "~", home},
		{"regular path", "/tmp/test", "/tmp/test"},
		{"relative path", "./test", "./test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandPath(tt.input))
		})
	}
}
