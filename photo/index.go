package photo

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// FileIndex maps lower-cased file names to absolute paths for every supported
// image below a root directory.
type FileIndex struct {
	root   string
	byName map[string]string
}

// IndexKey normalises a file name for lookups.
func IndexKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BuildIndex walks root recursively. When two files share a name the first
// one in lexical walk order wins. Unreadable subdirectories are skipped.
func BuildIndex(root string, log logrus.FieldLogger) (*FileIndex, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	ix := &FileIndex{root: resolved, byName: make(map[string]string)}
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == resolved {
				return err
			}
			log.WithField("path", path).WithError(err).Warn("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsImageExt(d.Name()) {
			return nil
		}
		key := IndexKey(d.Name())
		if prev, ok := ix.byName[key]; ok {
			log.WithField("file", d.Name()).Debugf("duplicate name, keeping %s", prev)
			return nil
		}
		ix.byName[key] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", root, err)
	}
	return ix, nil
}

// Lookup finds a file by name, ignoring case and surrounding spaces.
func (ix *FileIndex) Lookup(name string) (string, bool) {
	p, ok := ix.byName[IndexKey(name)]
	return p, ok
}

func (ix *FileIndex) Len() int {
	return len(ix.byName)
}

// Contains reports whether path, after following symlinks, lies inside the
// indexed root.
func (ix *FileIndex) Contains(path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(ix.root, resolved)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
