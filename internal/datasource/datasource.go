// Package datasource opens raw census layers from wherever they are cached
// or published.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound reports that a source has no layer for a key.
var ErrNotFound = errors.New("datasource: layer not found")

// Key identifies one raw layer.
type Key struct {
	FIPS  string
	Level string
	Year  string
}

func (k Key) String() string { return k.FIPS + "_" + k.Level + "_" + k.Year }

// Opened is a raw layer stream. The caller closes Body.
type Opened struct {
	Body io.ReadCloser

	// Location is the path or URL the bytes come from.
	Location string

	// Hash is the SHA-256 promised by the cache file name; empty when the
	// source cannot tell.
	Hash string
}

// Source opens the raw bytes of a layer.
type Source interface {
	Open(ctx context.Context, k Key) (Opened, error)
}

// FileName is a cached layer named "<fips>_<level>_<year>--<sha256>.<ext>".
type FileName struct {
	Key
	Hash string
	Ext  string
}

// ParseFileName splits a cached layer name. Directories are not allowed.
func ParseFileName(name string) (FileName, error) {
	if strings.ContainsAny(name, `/\`) {
		return FileName{}, fmt.Errorf("datasource: %q: base name expected", name)
	}
	stem, hashExt, ok := strings.Cut(name, "--")
	if !ok {
		return FileName{}, fmt.Errorf("datasource: %q: missing --<sha256>", name)
	}
	hash, ext, ok := strings.Cut(hashExt, ".")
	if !ok || ext == "" {
		return FileName{}, fmt.Errorf("datasource: %q: missing extension", name)
	}
	if len(hash) != 64 || strings.Trim(strings.ToLower(hash), "0123456789abcdef") != "" {
		return FileName{}, fmt.Errorf("datasource: %q: hash is not hex sha256", name)
	}
	parts := strings.Split(stem, "_")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return FileName{}, fmt.Errorf("datasource: %q: want <fips>_<level>_<year>", name)
	}
	return FileName{
		Key:  Key{FIPS: parts[0], Level: parts[1], Year: parts[2]},
		Hash: strings.ToLower(hash),
		Ext:  ext,
	}, nil
}

func (f FileName) String() string { return f.Key.String() + "--" + f.Hash + "." + f.Ext }
