package persistentworker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		wantArgs       []string
		wantPersistent bool
	}{
		{
			name:     "no flag",
			args:     []string{"rustc-worker", "/bin/rustc", "@args"},
			wantArgs: []string{"rustc-worker", "/bin/rustc", "@args"},
		},
		{
			name:           "trailing flag",
			args:           []string{"rustc-worker", "/bin/rustc", "--persistent_worker"},
			wantArgs:       []string{"rustc-worker", "/bin/rustc"},
			wantPersistent: true,
		},
		{
			name:           "flag before options",
			args:           []string{"rustc-worker", "--persistent_worker", "--compilation_mode=opt", "/bin/rustc"},
			wantArgs:       []string{"rustc-worker", "--compilation_mode=opt", "/bin/rustc"},
			wantPersistent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, persistent := ParseArgs(tt.args)
			assert.Equal(t, tt.wantArgs, args)
			assert.Equal(t, tt.wantPersistent, persistent)
		})
	}
}

func TestExpandArgfile(t *testing.T) {
	dir := t.TempDir()
	argfile := filepath.Join(dir, "args")
	content := "--crate-name\nfoo\n\n# not a comment\n  spaced  \nsrc/lib.rs\n"
	require.NoError(t, os.WriteFile(argfile, []byte(content), 0o644))

	got, err := ExpandArgfile([]string{"-v", "@" + argfile, "--edition=2021"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-v",
		"--crate-name", "foo", "", "# not a comment", "  spaced  ", "src/lib.rs",
		"--edition=2021",
	}, got)
}

func TestExpandArgfileWithoutArgfile(t *testing.T) {
	args := []string{"--version"}
	got, err := ExpandArgfile(args)
	require.NoError(t, err)
	assert.Equal(t, args, got)
}

func TestExpandArgfileErrors(t *testing.T) {
	_, err := ExpandArgfile([]string{"@a", "@b"})
	assert.ErrorContains(t, err, "multiple argfiles")

	_, err = ExpandArgfile([]string{"@" + filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadArgfileEmpty(t *testing.T) {
	argfile := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(argfile, nil, 0o644))

	got, err := ReadArgfile(argfile)
	require.NoError(t, err)
	assert.Empty(t, got)
}
