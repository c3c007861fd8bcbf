// Package file opens raw census layers cached on the local disk.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"geoetl/internal/datasource"
)

// Local opens one fixed file. If the file follows the cache naming
// convention it only serves the key in its name and its hash is reported;
// any other name serves every key.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

func (l *Local) Open(ctx context.Context, k datasource.Key) (datasource.Opened, error) {
	if err := ctx.Err(); err != nil {
		return datasource.Opened{}, err
	}
	var hash string
	if fn, err := datasource.ParseFileName(filepath.Base(l.path)); err == nil {
		if !strings.EqualFold(fn.Key.String(), k.String()) {
			return datasource.Opened{}, fmt.Errorf("%w: %s holds %s, not %s", datasource.ErrNotFound, l.path, fn.Key, k)
		}
		hash = fn.Hash
	}
	f, err := os.Open(l.path)
	if err != nil {
		return datasource.Opened{}, fmt.Errorf("open %s: %w", l.path, err)
	}
	return datasource.Opened{Body: f, Location: l.path, Hash: hash}, nil
}

// Dir finds layers in a cache directory by their file names.
type Dir struct{ dir string }

// NewDir returns a Dir reading from dir.
func NewDir(dir string) *Dir { return &Dir{dir: dir} }

// Open returns the single file named after k. Several cached copies of one
// layer are an error, since the run could not tell which one is current.
func (d *Dir) Open(ctx context.Context, k datasource.Key) (datasource.Opened, error) {
	if err := ctx.Err(); err != nil {
		return datasource.Opened{}, err
	}
	matches, err := filepath.Glob(filepath.Join(d.dir, k.String()+"--*"))
	if err != nil {
		return datasource.Opened{}, fmt.Errorf("glob %s: %w", d.dir, err)
	}

	var found []datasource.FileName
	for _, m := range matches {
		fn, err := datasource.ParseFileName(filepath.Base(m))
		if err != nil || fn.Key != k {
			continue
		}
		found = append(found, fn)
	}
	switch len(found) {
	case 0:
		return datasource.Opened{}, fmt.Errorf("%w: %s in %s", datasource.ErrNotFound, k, d.dir)
	case 1:
	default:
		return datasource.Opened{}, fmt.Errorf("datasource: %d cached copies of %s in %s", len(found), k, d.dir)
	}

	path := filepath.Join(d.dir, found[0].String())
	f, err := os.Open(path)
	if err != nil {
		return datasource.Opened{}, fmt.Errorf("open %s: %w", path, err)
	}
	return datasource.Opened{Body: f, Location: path, Hash: found[0].Hash}, nil
}
