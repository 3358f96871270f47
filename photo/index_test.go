package photo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geosnap/utils"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestBuildIndex(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "IMG_001.JPG"))
	touch(t, filepath.Join(root, "day2", "img_002.jpeg"))
	touch(t, filepath.Join(root, "day2", "deep", "Pano.HEIC"))
	touch(t, filepath.Join(root, "day2", "notes.txt"))
	touch(t, filepath.Join(root, "a", "dup.jpg"))
	touch(t, filepath.Join(root, "b", "dup.jpg"))

	ix, err := BuildIndex(root, utils.Discard())
	require.NoError(t, err)
	assert.Equal(t, 4, ix.Len())

	p, ok := ix.Lookup("img_001.jpg")
	require.True(t, ok)
	assert.Equal(t, "IMG_001.JPG", filepath.Base(p))
	assert.True(t, filepath.IsAbs(p))

	_, ok = ix.Lookup("  PANO.heic ")
	assert.True(t, ok)

	_, ok = ix.Lookup("notes.txt")
	assert.False(t, ok)

	p, ok = ix.Lookup("dup.jpg")
	require.True(t, ok)
	assert.Equal(t, "a", filepath.Base(filepath.Dir(p)))
}

func TestBuildIndexMissingRoot(t *testing.T) {
	_, err := BuildIndex(filepath.Join(t.TempDir(), "gone"), utils.Discard())
	assert.Error(t, err)
}

func TestFileIndexContains(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	inside := filepath.Join(root, "in.jpg")
	touch(t, inside)
	secret := filepath.Join(outside, "secret.jpg")
	touch(t, secret)

	link := filepath.Join(root, "link.jpg")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	ix, err := BuildIndex(root, utils.Discard())
	require.NoError(t, err)

	p, ok := ix.Lookup("link.jpg")
	require.True(t, ok)
	assert.False(t, ix.Contains(p), "symlink leaving the tree must not be followed")

	p, ok = ix.Lookup("in.jpg")
	require.True(t, ok)
	assert.True(t, ix.Contains(p))

	assert.False(t, ix.Contains(filepath.Join(root, "..", filepath.Base(outside), "secret.jpg")))
}
