package module

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name looked up in every module directory.
const ManifestFile = "module.yaml"

type manifest struct {
	GUID         string       `yaml:"guid"`
	Name         string       `yaml:"name"`
	Description  string       `yaml:"description,omitempty"`
	Authors      string       `yaml:"authors,omitempty"`
	Version      Version      `yaml:"version"`
	Dependencies []Dependency `yaml:"dependencies,omitempty"`
	Entry        string       `yaml:"entry,omitempty"`
}

// LoadManifest reads a module manifest. Info.Dir is set to the manifest's
// directory.
func LoadManifest(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, eris.Wrapf(err, "read manifest %s", path)
	}
	var mf manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return Info{}, eris.Wrapf(ErrInvalidManifest, "parse %s: %v", path, err)
	}
	if mf.Name == "" {
		return Info{}, eris.Wrapf(ErrInvalidManifest, "%s: missing name", path)
	}
	guid, err := uuid.Parse(mf.GUID)
	if err != nil {
		return Info{}, eris.Wrapf(ErrInvalidManifest, "%s: guid %q: %v", path, mf.GUID, err)
	}
	for _, d := range mf.Dependencies {
		if d.Name == "" {
			return Info{}, eris.Wrapf(ErrInvalidManifest, "%s: dependency without name", path)
		}
	}
	return Info{
		Module:       Module{Name: mf.Name, GUID: guid},
		Description:  mf.Description,
		Authors:      mf.Authors,
		Version:      mf.Version,
		Dependencies: mf.Dependencies,
		Entry:        mf.Entry,
		Dir:          filepath.Dir(path),
	}, nil
}

// WriteManifest writes info as a manifest at path.
func WriteManifest(path string, info Info) error {
	data, err := yaml.Marshal(manifest{
		GUID:         info.GUID.String(),
		Name:         info.Name,
		Description:  info.Description,
		Authors:      info.Authors,
		Version:      info.Version,
		Dependencies: info.Dependencies,
		Entry:        info.Entry,
	})
	if err != nil {
		return eris.Wrapf(err, "encode manifest for %s", info.Name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write manifest %s", path)
	}
	return nil
}

// Discover loads the manifest of every direct subdirectory of dir that has
// one. Results follow directory name order, which is the discovery order
// used to break ties in the dependency graph.
func Discover(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "scan module dir %s", dir)
	}
	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name(), ManifestFile)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, eris.Wrapf(err, "stat %s", path)
		}
		info, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
