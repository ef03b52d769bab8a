package lirc

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed profiles/*.conf
var profileFS embed.FS

const profileExt = ".conf"

// ProfileNames lists the bundled remote definitions.
func ProfileNames() []string {
	entries, err := fs.ReadDir(profileFS, "profiles")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), profileExt) {
			names = append(names, strings.TrimSuffix(e.Name(), profileExt))
		}
	}
	sort.Strings(names)
	return names
}

// LoadProfile returns the bundled remote with the given name.
func LoadProfile(name string) (*Remote, error) {
	f, err := profileFS.Open(path.Join("profiles", name+profileExt))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	defer f.Close() //nolint:errcheck // Embedded file

	root, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	return NewRemote(root)
}

// Load resolves source as a file path when it exists on disk, otherwise
// as a bundled profile name.
func Load(source string) (*Remote, error) {
	if _, err := os.Stat(source); err == nil {
		root, err := ParseFile(source)
		if err != nil {
			return nil, fmt.Errorf("definition %s: %w", source, err)
		}
		return NewRemote(root)
	}
	return LoadProfile(source)
}
