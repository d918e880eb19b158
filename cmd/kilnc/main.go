package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kilnhq/kiln/compile"
	"github.com/kilnhq/kiln/hcldef"
	"github.com/kilnhq/kiln/introspect"
)

// run executes the compiler logic. It exists separately from main to allow
// unit testing without os.Exit.
func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("kilnc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	defsPath := fs.String("defs", "", "definition document or directory of .hcl documents")
	dir := fs.String("dir", "", "artifact output directory")
	name := fs.String("name", "", "artifact name, a Go identifier")
	pkg := fs.String("pkg", "", "package clause override for the generated file")
	parent := fs.String("parent", "", "parent artifact name this one extends")
	verbose := fs.Bool("v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case *defsPath == "":
		return fmt.Errorf("missing -defs")
	case *dir == "":
		return fmt.Errorf("missing -dir")
	case *name == "":
		return fmt.Errorf("missing -name")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	defs, err := hcldef.Load(*defsPath)
	if err != nil {
		return err
	}
	log.Debug("definitions loaded", "path", *defsPath, "entries", len(defs))

	intr := introspect.Default()
	id := compile.Identity{Dir: *dir, Name: *name, Package: *pkg, Parent: *parent}
	art, err := compile.NewCache(intr, log).Obtain(id, func() (*compile.Manifest, error) {
		res, err := compile.NewAnalyzer(intr, log).Analyze(defs)
		if err != nil {
			return nil, err
		}
		return compile.NewManifest(id.Name, id.Parent, res), nil
	})
	if err != nil {
		return err
	}

	switch {
	case art.Linked:
		fmt.Fprintf(stdout, "%s: already linked into this binary\n", art.Identity.Name)
	case art.Built:
		fmt.Fprintf(stdout, "%s: wrote %s (%d compiled, %d interpreted)\n",
			art.Identity.Name, art.Path, len(art.Manifest.Entries), len(art.Manifest.Skipped))
	default:
		fmt.Fprintf(stdout, "%s: up to date at %s\n", art.Identity.Name, art.Path)
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "kilnc:", err)
		os.Exit(1)
	}
}
