// Package hcldef loads container definitions from HCL documents.
//
// A document is a flat set of entry blocks. Exactly one of value, alias,
// class or item content decides the kind of each entry:
//
//	entry "db.dsn" {
//	  value = "postgres://localhost/app"
//	}
//
//	entry "db" {
//	  alias = "db.primary"
//	}
//
//	entry "store" {
//	  class = "github.com/acme/app.Store"
//
//	  arg {
//	    entry = "db"
//	  }
//
//	  property "Timeout" {
//	    value = 30
//	  }
//
//	  call "Warm" {
//	    arg {
//	      value = 25
//	    }
//	  }
//	}
//
//	entry "plugins" {
//	  item {
//	    value = "core"
//	  }
//	  item {
//	    key   = "store"
//	    entry = "store"
//	  }
//	}
//
// Inside arg, property and item blocks, value carries a literal and entry
// refers to another container entry. Factories cannot be expressed in
// configuration; register those in code.
//
// Numbers are a single HCL type: whole values come back as int64, anything
// fractional as float64.
package hcldef

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/kilnhq/kiln/definition"
)

type fileRoot struct {
	Entries []*entryBlock `hcl:"entry,block"`
}

type entryBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value,optional"`
	Alias *string        `hcl:"alias,optional"`
	Class *string        `hcl:"class,optional"`
	Args  []*argBlock    `hcl:"arg,block"`
	Props []*propBlock   `hcl:"property,block"`
	Calls []*callBlock   `hcl:"call,block"`
	Items []*itemBlock   `hcl:"item,block"`
}

type argBlock struct {
	Value hcl.Expression `hcl:"value,optional"`
	Entry *string        `hcl:"entry,optional"`
}

type propBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value,optional"`
	Entry *string        `hcl:"entry,optional"`
}

type callBlock struct {
	Method string      `hcl:"method,label"`
	Args   []*argBlock `hcl:"arg,block"`
}

type itemBlock struct {
	Key   *string        `hcl:"key,optional"`
	Value hcl.Expression `hcl:"value,optional"`
	Entry *string        `hcl:"entry,optional"`
}

// Load reads definitions from each path. A directory is walked for .hcl
// files; a file is read as given. Entries merge across files in path order,
// later files winning on name clashes, the same layering AddAll applies.
func Load(paths ...string) (map[string]definition.Definition, error) {
	files, err := findFiles(paths)
	if err != nil {
		return nil, err
	}
	parser := hclparse.NewParser()
	out := make(map[string]definition.Definition)
	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %w", file, diags)
		}
		if err := decodeInto(out, f.Body); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}
	return out, nil
}

// Parse decodes definitions from one in-memory document. The filename only
// labels diagnostics.
func Parse(filename string, src []byte) (map[string]definition.Definition, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", filename, diags)
	}
	out := make(map[string]definition.Definition)
	if err := decodeInto(out, f.Body); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return out, nil
}

func findFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("definitions path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk definitions dir %s: %w", path, err)
		}
	}
	return files, nil
}

func decodeInto(out map[string]definition.Definition, body hcl.Body) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("decode definitions: %w", diags)
	}
	for _, blk := range root.Entries {
		def, err := blk.definition()
		if err != nil {
			return err
		}
		out[blk.Name] = def
	}
	return nil
}
