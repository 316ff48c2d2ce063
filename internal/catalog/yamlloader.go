package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the top-level structure of a provisioned catalog YAML file.
//
// Example:
//
//	catalog:
//	  user: "alex@example.com"
//	  name: "Lab projects"
//	entries:
//	  - title: "Fedora Tip"
//	    description: "A cafe review site"
//	    url: "https://fedoratip.example"
type CatalogFile struct {
	Catalog CatalogMeta `yaml:"catalog"`
	Entries []Entry     `yaml:"entries"`
}

// CatalogMeta identifies whose catalog a file provisions.
type CatalogMeta struct {
	// User is the ID of the user that owns the catalog. Required.
	User string `yaml:"user"`

	// Name is a display name for the catalog.
	Name string `yaml:"name"`
}

// LoadCatalogFile reads and parses a catalog YAML file from disk.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open catalog file %q: %w", path, err)
	}
	defer f.Close()

	cf, err := LoadCatalogFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse catalog file %q: %w", path, err)
	}
	return cf, nil
}

// LoadCatalogFromReader parses catalog YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadCatalogFromReader(r io.Reader) (*CatalogFile, error) {
	var cf CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("catalog: decode catalog yaml: %w", err)
	}
	return &cf, nil
}

// ImportCatalog validates every entry of cf and replaces the owning user's
// catalog in store with them.
func ImportCatalog(ctx context.Context, store Store, cf *CatalogFile) (int, error) {
	if cf == nil {
		return 0, errors.New("catalog: catalog file must not be nil")
	}
	if strings.TrimSpace(cf.Catalog.User) == "" {
		return 0, fmt.Errorf("catalog: import %q: catalog.user must not be empty", cf.Catalog.Name)
	}

	var errs []error
	for i, e := range cf.Entries {
		if err := Validate(e); err != nil {
			errs = append(errs, fmt.Errorf("entries[%d]: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return 0, fmt.Errorf("catalog: import %q: %w", cf.Catalog.Name, err)
	}

	if err := store.Replace(ctx, cf.Catalog.User, cf.Entries); err != nil {
		return 0, fmt.Errorf("catalog: import %q: %w", cf.Catalog.Name, err)
	}
	return len(cf.Entries), nil
}

// LoadDir imports every *.yaml and *.yml file in dir into store, in file name
// order. A file that fails to load is skipped and its error reported; the
// others are still imported. It returns the owning user of each file that
// was imported, keyed by path.
func LoadDir(ctx context.Context, store Store, dir string) (map[string]string, error) {
	paths, err := catalogFiles(dir)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string, len(paths))
	var errs []error
	for _, p := range paths {
		user, err := importFile(ctx, store, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		owners[p] = user
	}
	return owners, errors.Join(errs...)
}

func importFile(ctx context.Context, store Store, path string) (string, error) {
	cf, err := LoadCatalogFile(path)
	if err != nil {
		return "", err
	}
	if _, err := ImportCatalog(ctx, store, cf); err != nil {
		return "", fmt.Errorf("catalog: %q: %w", path, err)
	}
	return cf.Catalog.User, nil
}

func catalogFiles(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read dir %q: %w", dir, err)
	}
	var paths []string
	for _, de := range des {
		if de.IsDir() || !isCatalogFile(de.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, de.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

func isCatalogFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return (ext == ".yaml" || ext == ".yml") && !strings.HasPrefix(filepath.Base(name), ".")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
