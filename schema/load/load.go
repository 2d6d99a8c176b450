// Package load reads model declarations from YAML documents. A loaded
// declaration is the loose-map form consumed by the registry's
// declaration intake; hooks, instance methods, and producer-valued
// rules cannot be expressed in a document and are attached in code
// after loading.
package load

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode reads one YAML document holding a single declaration map or a
// list of declaration maps.
func Decode(r io.Reader) ([]map[string]any, error) {
	var doc any
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("load: decode: %w", err)
	}
	switch v := doc.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("load: document entry %d is not a map", i)
			}
			out = append(out, m)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("load: document is not a map or a list of maps")
	}
}

// File loads the declarations of a single YAML file.
func File(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer f.Close()
	decls, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load: %s: %w", path, err)
	}
	return decls, nil
}

// Dir loads every .yml and .yaml file directly under dir, in file-name
// order so registration order is stable across runs.
func Dir(dir string) ([]map[string]any, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	var out []map[string]any
	for _, name := range names {
		decls, err := File(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, decls...)
	}
	return out, nil
}

// FS loads declarations from an fs.FS, for embedded model files.
func FS(fsys fs.FS, path string) ([]map[string]any, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer f.Close()
	decls, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load: %s: %w", path, err)
	}
	return decls, nil
}
