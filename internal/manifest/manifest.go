// Package manifest reads plugin descriptors from the host's manifest
// source: either a single file with a "plugins" list or a directory of
// one-descriptor files. Manifest order (list order, or filename order
// for a directory) is preserved so route registration stays
// deterministic. The store only parses and validates descriptors;
// whether lib_path actually exists is the loader's concern.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HerbHall/routeforge/pkg/plugin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Manifest errors. Callers classify with errors.Is.
var (
	// ErrNotFound means the manifest source does not exist.
	ErrNotFound = errors.New("manifest source not found")

	// ErrMalformed means the manifest could not be parsed.
	ErrMalformed = errors.New("manifest malformed")

	// ErrMissingField means a descriptor omits name or lib_path.
	ErrMissingField = errors.New("descriptor missing required field")
)

// Extensions the directory scan recognizes.
var manifestExts = map[string]bool{
	".toml": true,
	".yaml": true,
	".yml":  true,
	".json": true,
}

// Store reads plugin descriptors from a file or directory source.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a Store reading from path.
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the configured manifest source location.
func (s *Store) Path() string { return s.path }

// List reads all plugin descriptors from the source in manifest order.
func (s *Store) List() ([]plugin.Descriptor, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("stat manifest %s: %w", s.path, err)
	}

	var descs []plugin.Descriptor
	if info.IsDir() {
		descs, err = s.listDir()
	} else {
		descs, err = s.listFile()
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(descs))
	for i := range descs {
		if err := validate(&descs[i]); err != nil {
			return nil, err
		}
		if seen[descs[i].Name] {
			return nil, fmt.Errorf("%w: duplicate plugin name %q", ErrMalformed, descs[i].Name)
		}
		seen[descs[i].Name] = true
	}

	s.logger.Debug("manifest read",
		zap.String("source", s.path),
		zap.Int("plugins", len(descs)),
	)
	return descs, nil
}

// listFile parses a single manifest file holding a "plugins" list.
func (s *Store) listFile() ([]plugin.Descriptor, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}

	var descs []plugin.Descriptor
	if err := v.UnmarshalKey("plugins", &descs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	return descs, nil
}

// listDir parses every recognized file in the directory as one
// descriptor, in filename order.
func (s *Store) listDir() ([]plugin.Descriptor, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest directory %s: %w", s.path, err)
	}

	var descs []plugin.Descriptor
	for _, e := range entries {
		if e.IsDir() || !manifestExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(s.path, e.Name())

		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}

		var d plugin.Descriptor
		if err := v.Unmarshal(&d); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func validate(d *plugin.Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if d.LibPath == "" {
		return fmt.Errorf("%w: lib_path (plugin %q)", ErrMissingField, d.Name)
	}
	return nil
}
