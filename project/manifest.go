// Package project loads .ssproj manifests and builds their entry sources
// into bytecode artifacts, with a digest-keyed disk cache for compiled
// chunks.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

// Manifest describes one SunScript project: the entry source file and the
// ordered roots searched when resolving sources.
type Manifest struct {
	Name        string   `toml:"name"`
	Entry       string   `toml:"entry"`
	ImportRoots []string `toml:"import_roots"`

	// Dir is the directory containing the manifest; relative paths resolve
	// against it.
	Dir string `toml:"-"`
}

// LoadManifest reads and validates a .ssproj manifest.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate checks the manifest, aggregating every problem.
func (m *Manifest) validate() error {
	var result *multierror.Error
	if m.Entry == "" {
		result = multierror.Append(result, fmt.Errorf("manifest is missing an entry source"))
	} else if _, err := os.Stat(m.EntryPath()); err != nil {
		result = multierror.Append(result, fmt.Errorf("entry source %s: %w", m.EntryPath(), err))
	}
	for _, root := range m.ImportRoots {
		full := root
		if !filepath.IsAbs(full) {
			full = filepath.Join(m.Dir, root)
		}
		info, err := os.Stat(full)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("import root %s: %w", root, err))
		} else if !info.IsDir() {
			result = multierror.Append(result, fmt.Errorf("import root %s is not a directory", root))
		}
	}
	return result.ErrorOrNil()
}

// EntryPath returns the absolute path of the entry source.
func (m *Manifest) EntryPath() string {
	if filepath.IsAbs(m.Entry) {
		return m.Entry
	}
	return filepath.Join(m.Dir, m.Entry)
}

// ArtifactPath returns the output path for the compiled artifact: the
// project name with the .ssasm extension, next to the manifest. The name
// is the manifest's name entry; the manifest file stem is used only when
// that entry is empty.
func (m *Manifest) ArtifactPath() string {
	return filepath.Join(m.Dir, m.Name+".ssasm")
}
