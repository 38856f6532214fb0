// Package i18n provides the localization catalog consumed by the
// placeholder resolver. Catalogs are flat key/value YAML files, one per
// language, loaded once at startup. Lookup is deliberately fallible: a
// missing key is an authoring error and must surface as one instead of
// silently rendering a default.
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyError reports a lookup for a key the catalog does not contain.
type KeyError struct {
	Lang string
	Key  string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("no %q entry for key %q", e.Lang, e.Key)
}

// Catalog holds the localized strings for a single language.
type Catalog struct {
	lang    string
	entries map[string]string
}

// NewCatalog builds a catalog directly from a key/value map. Intended for
// tests and embedded defaults; production catalogs come from LoadFile.
func NewCatalog(lang string, entries map[string]string) *Catalog {
	c := &Catalog{lang: lang, entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		c.entries[k] = v
	}
	return c
}

// Lang returns the language code the catalog was loaded for.
func (c *Catalog) Lang() string { return c.lang }

// Lookup returns the localized string for key, or a KeyError if the
// catalog has no such entry.
func (c *Catalog) Lookup(key string) (string, error) {
	value, ok := c.entries[key]
	if !ok {
		return "", &KeyError{Lang: c.lang, Key: key}
	}
	return value, nil
}

// LoadFile reads a single-language catalog from a YAML file. The language
// code is taken from the file name ("en.yaml" -> "en").
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	entries := make(map[string]string)
	if err = yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %q: %w", path, err)
	}
	lang := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Catalog{lang: lang, entries: entries}, nil
}

// LoadDir loads every *.yaml catalog in dir, keyed by language code.
func LoadDir(dir string) (map[string]*Catalog, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	catalogs := make(map[string]*Catalog, len(matches))
	for _, path := range matches {
		catalog, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		catalogs[catalog.Lang()] = catalog
	}
	return catalogs, nil
}
