// Package manifest loads the project file (skyline.yaml) describing a
// plugin: which title it attaches to, what it needs on the console, and
// where its build output lives.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	skyerr "skyctl/internal/errors"
	"skyctl/internal/npdm"
)

// FileName is the project file looked up by Find.
const FileName = "skyline.yaml"

// Dependency is a plugin that must be present in the plugin directory.
type Dependency struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Resource is a local file or directory shipped alongside the plugin.
type Resource struct {
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`
}

// Manifest is the parsed project file.  Relative paths are resolved
// against Dir by Load.
type Manifest struct {
	Name          string       `yaml:"name"`
	TitleID       string       `yaml:"title_id"`
	CustomNpdm    string       `yaml:"custom_npdm,omitempty"`
	RuntimeModule string       `yaml:"subsdk_name,omitempty"`
	Artifact      string       `yaml:"artifact,omitempty"`
	BuildCommand  string       `yaml:"build,omitempty"`
	Dependencies  []Dependency `yaml:"dependencies,omitempty"`
	Resources     []Resource   `yaml:"resources,omitempty"`

	// Dir is the directory the manifest was loaded from.
	Dir string `yaml:"-"`
}

// Parse decodes and validates manifest YAML.  Unknown keys are errors
// so typos do not silently drop settings.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, &skyerr.ConfigError{Field: "manifest", Message: err.Error()}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// Find walks up from dir looking for FileName and returns its path.
// It returns an error wrapping fs.ErrNotExist when none is found.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(dir, FileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s: %w", FileName, fs.ErrNotExist)
		}
		dir = parent
	}
}

// Validate checks field formats.  An absent title id is allowed here
// because it can also come from the command line.
func (m *Manifest) Validate() error {
	if m.TitleID != "" {
		if _, err := npdm.ParseTitleID(m.TitleID); err != nil {
			return &skyerr.ConfigError{Field: "title_id", Value: m.TitleID, Message: err.Error()}
		}
	}
	if strings.Contains(m.RuntimeModule, "/") {
		return &skyerr.ConfigError{Field: "subsdk_name", Value: m.RuntimeModule, Message: "must be a bare file name"}
	}

	seen := make(map[string]bool)
	for i, d := range m.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		if d.Name == "" || strings.Contains(d.Name, "/") {
			return &skyerr.ConfigError{Field: field + ".name", Value: d.Name, Message: "must be a bare file name"}
		}
		if seen[d.Name] {
			return &skyerr.ConfigError{Field: field + ".name", Value: d.Name, Message: "duplicate dependency"}
		}
		seen[d.Name] = true

		u, err := url.Parse(d.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &skyerr.ConfigError{Field: field + ".url", Value: d.URL, Message: "must be an http(s) URL"}
		}
	}
	return nil
}

// Resolve makes a manifest-relative path absolute.
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// DefaultArtifactName is the file name a plugin named Name builds to.
func (m *Manifest) DefaultArtifactName() string {
	if m.Name == "" {
		return ""
	}
	return "lib" + m.Name + ".nro"
}
