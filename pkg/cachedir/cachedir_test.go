package cachedir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIsDeterministic(t *testing.T) {
	root := t.TempDir()

	first, err := Resolve(root, "/usr/bin/rustc", "opt")
	require.NoError(t, err)
	second, err := Resolve(root, "/usr/bin/rustc", "opt")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, root, filepath.Dir(first))
	info, err := os.Stat(first)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(first)
	require.NoError(t, err)
	assert.Empty(t, entries, "the writability probe must be cleaned up")
}

func TestResolveSeparatesDiscriminators(t *testing.T) {
	root := t.TempDir()
	seen := map[string]string{}
	for _, d := range []string{"", "opt", "fastbuild", "dbg", "a/b", "a_b", "..", ".", "x y", "~0"} {
		dir, err := Resolve(root, "/usr/bin/rustc", d)
		require.NoError(t, err, "discriminator %q", d)
		if prev, ok := seen[dir]; ok {
			t.Fatalf("discriminators %q and %q share %s", prev, d, dir)
		}
		seen[dir] = d
		assert.Equal(t, root, filepath.Dir(dir), "discriminator %q escaped the root", d)
	}
}

func TestResolveSeparatesCompilers(t *testing.T) {
	root := t.TempDir()
	a, err := Resolve(root, "/toolchains/1.79/bin/rustc", "opt")
	require.NoError(t, err)
	b, err := Resolve(root, "/toolchains/1.80/bin/rustc", "opt")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestName(t *testing.T) {
	name := Name("/usr/bin/rustc", "opt")
	assert.True(t, strings.HasPrefix(name, "rustc-worker-"))
	assert.True(t, strings.HasSuffix(name, "-opt"))
	assert.NotContains(t, name, "/usr/bin")
	assert.Len(t, name, len("rustc-worker-")+2*hashLen+len("-opt"))

	long := Name(strings.Repeat("/very/long/path", 100), "")
	assert.Len(t, long, len("rustc-worker-")+2*hashLen)

	unsafe := Name("/usr/bin/rustc", "../../etc")
	assert.NotContains(t, unsafe, "/")
	assert.Contains(t, unsafe, "-~")
}

func TestResolveUnwritableRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, []byte("not a directory"), 0o644))

	_, err := Resolve(root, "/usr/bin/rustc", "")
	var resourceErr *ResourceError
	require.ErrorAs(t, err, &resourceErr)
	assert.True(t, strings.HasPrefix(resourceErr.Path, root))
}
