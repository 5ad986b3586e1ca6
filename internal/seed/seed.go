// Package seed loads table declarations from a directory of YAML files and
// applies them to a demo project at startup, so a fresh install has
// something to point a client at.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"veritab/internal/catalog"
	"veritab/internal/field"
	"veritab/internal/pg"
	"veritab/internal/project"
)

// Declaration mirrors the table-creation request shape.
type Declaration struct {
	Name        string        `yaml:"name"`
	DisplayName string        `yaml:"display_name"`
	Description string        `yaml:"description"`
	Fields      []field.Field `yaml:"fields"`
}

// LoadDir reads every .yaml/.yml file in dir, one declaration per file.
func LoadDir(dir string) ([]Declaration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Declaration
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		ext := filepath.Ext(file.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		var decl Declaration
		if err := yaml.Unmarshal(data, &decl); err != nil {
			return nil, fmt.Errorf("%s: %w", file.Name(), err)
		}
		if decl.Name == "" {
			decl.Name = strings.TrimSuffix(file.Name(), ext)
		}
		out = append(out, decl)
	}
	return out, nil
}

// Apply ensures the demo project exists and defines each declared table
// that is not in its catalog yet, provisioning storage alongside. Existing
// tables are left alone.
func Apply(ctx context.Context, decls []Declaration, projects *project.Store, cat *catalog.Catalog, prov *pg.Provisioner, name, apiKey string) error {
	p, err := projects.EnsureWithKey(ctx, name, "seeded demo project", apiKey)
	if err != nil {
		return err
	}
	for _, decl := range decls {
		_, err := cat.Lookup(ctx, p.ID, decl.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, catalog.ErrTableNotFound) {
			return err
		}
		tbl, err := cat.Define(ctx, p.ID, decl.Name, decl.DisplayName, decl.Description, decl.Fields)
		if err != nil {
			return fmt.Errorf("seed table %q: %w", decl.Name, err)
		}
		if err := prov.CreatePhysical(ctx, p.ID, tbl.Name, tbl.Fields); err != nil {
			// keep catalog and storage in lockstep: undo the metadata write
			if _, rerr := cat.Remove(ctx, p.ID, tbl.Name); rerr != nil {
				log.Printf("seed: orphaned catalog entry %q: %v", tbl.Name, rerr)
			}
			return fmt.Errorf("seed table %q: %w", decl.Name, err)
		}
		log.Printf("seeded table %q for project %d", tbl.Name, p.ID)
	}
	return nil
}
