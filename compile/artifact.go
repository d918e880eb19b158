package compile

import (
	"errors"
	"fmt"
	"go/token"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/kilnhq/kiln/introspect"
)

// Identity names one artifact: where it lives and what it is called. Two
// identities with the same directory and name are the same artifact.
type Identity struct {
	// Dir is the directory artifact files are written to.
	Dir string

	// Name is the artifact name, a Go identifier. It names the generated
	// file, the registered program and the generated type.
	Name string

	// Package overrides the package clause of the generated file. Empty
	// derives it from the directory base name.
	Package string

	// Parent chains this artifact's program onto another program's entries.
	// The generated type embeds the parent type, so a parent artifact must
	// share the generated file's package.
	Parent string
}

// File returns the artifact's path on disk.
func (id Identity) File() string {
	return filepath.Join(id.Dir, id.Name+".gen.go")
}

// PackageName returns the package clause for the generated file.
func (id Identity) PackageName() string {
	if id.Package != "" {
		return id.Package
	}
	base := filepath.Base(id.Dir)
	var b strings.Builder
	for _, r := range base {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if out := b.String(); token.IsIdentifier(out) {
		return out
	}
	return "kilncache"
}

// Artifact is an obtained compilation artifact, ready to mount.
type Artifact struct {
	Identity Identity

	// Path is the artifact file location. When Linked is set the file may
	// not exist; the program came from the binary itself.
	Path string

	// Program is the executable face of the artifact.
	Program *Program

	// Manifest is the recovered plan. Nil when the program was linked in.
	Manifest *Manifest

	// Built reports that this call generated and wrote the artifact.
	Built bool

	// Linked reports that the program was already compiled into the binary.
	Linked bool
}

// BuildFunc produces the manifest for an identity with no existing artifact.
// It runs at most once per identity and concurrent obtainers of that
// identity, however many there are.
type BuildFunc func() (*Manifest, error)

// Cache hands out artifacts by identity. Existence is the only cache key: a
// linked-in program or an artifact file on disk is reused as is, with no
// freshness check against current definitions, so a stale artifact wins
// until it is deleted. Deleting the file is the cache invalidation.
type Cache struct {
	intr  introspect.Introspector
	log   *slog.Logger
	group singleflight.Group
}

// NewCache builds an artifact cache over the given introspector. A nil
// logger disables logging.
func NewCache(intr introspect.Introspector, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Cache{intr: intr, log: log}
}

// Obtain returns the artifact for id, building it only when neither a
// linked-in program nor an artifact file exists. The name is validated
// before any lookup or I/O. Concurrent calls for the same identity share a
// single build.
func (c *Cache) Obtain(id Identity, build BuildFunc) (*Artifact, error) {
	if !token.IsIdentifier(id.Name) {
		return nil, &InvalidNameError{Name: id.Name}
	}
	if id.Dir == "" {
		return nil, fmt.Errorf("artifact %s: directory not set", id.Name)
	}
	v, err, _ := c.group.Do(id.File(), func() (any, error) {
		return c.obtain(id, build)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Artifact), nil
}

func (c *Cache) obtain(id Identity, build BuildFunc) (*Artifact, error) {
	path := id.File()

	if p, ok := LookupProgram(id.Name); ok {
		c.log.Debug("artifact linked in", "artifact", id.Name)
		return &Artifact{Identity: id, Path: path, Program: p, Linked: true}, nil
	}

	switch _, err := os.Stat(path); {
	case err == nil:
		m, err := LoadArtifact(path)
		if err != nil {
			return nil, fmt.Errorf("load artifact %s: %w", path, err)
		}
		c.log.Debug("artifact reused", "artifact", id.Name, "path", path)
		return &Artifact{Identity: id, Path: path, Program: BindProgram(m, c.intr), Manifest: m}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat artifact %s: %w", path, err)
	}

	m, err := build()
	if err != nil {
		return nil, err
	}
	if m.Name != id.Name {
		return nil, fmt.Errorf("artifact %s: build produced manifest named %q", id.Name, m.Name)
	}
	src, err := NewGenerator(c.intr, c.log).Generate(m, id.PackageName())
	if err != nil {
		return nil, err
	}
	if err := writeArtifact(path, src); err != nil {
		return nil, err
	}
	c.log.Info("artifact built", "artifact", id.Name, "path", path,
		"entries", len(m.Entries), "interpreted", len(m.Skipped))
	return &Artifact{Identity: id, Path: path, Program: BindProgram(m, c.intr), Manifest: m, Built: true}, nil
}

// writeArtifact lands src at path through a temp file and rename, so a
// concurrent reader never sees a half-written artifact. The temp name
// starts with a dot to keep build tooling away from it.
func writeArtifact(path string, src []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".")
	if err != nil {
		return fmt.Errorf("create artifact temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(src); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}
