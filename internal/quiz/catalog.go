package quiz

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Catalog is the read-only set of quizzes loaded at startup. It is safe for
// concurrent use once built.
type Catalog struct {
	trees      map[string]*Tree
	defaultID  string
	sourceByID map[string]string
}

// NewCatalog builds a catalog from already validated trees. defaultID may be
// empty, in which case the first id in sort order is the default.
func NewCatalog(defaultID string, trees ...*Tree) (*Catalog, error) {
	c := &Catalog{
		trees:      make(map[string]*Tree, len(trees)),
		sourceByID: make(map[string]string, len(trees)),
	}
	for _, t := range trees {
		if err := c.add(t, ""); err != nil {
			return nil, err
		}
	}
	if err := c.setDefault(defaultID); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCatalog loads every *.json, *.yaml and *.yml file in dir. Any invalid
// document fails the whole load; all failures are joined.
func LoadCatalog(dir, defaultID string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("quiz: read catalog dir: %w", err)
	}
	c := &Catalog{
		trees:      make(map[string]*Tree),
		sourceByID: make(map[string]string),
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := FormatFromPath(e.Name()); !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.add(t, path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(c.trees) == 0 {
		return nil, fmt.Errorf("quiz: no quiz documents in %s", dir)
	}
	if err := c.setDefault(defaultID); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) add(t *Tree, source string) error {
	if t == nil {
		return fmt.Errorf("quiz: nil tree")
	}
	if t.ID == "" {
		return &ValidationError{Source: source, Problems: []Problem{{Path: "id", Reason: "required for catalog entries"}}}
	}
	if prev, dup := c.sourceByID[t.ID]; dup {
		return &ValidationError{Source: source, Problems: []Problem{{Path: "id", Reason: fmt.Sprintf("duplicate quiz id %q (also in %s)", t.ID, prev)}}}
	}
	c.trees[t.ID] = t
	c.sourceByID[t.ID] = source
	return nil
}

func (c *Catalog) setDefault(id string) error {
	if id == "" {
		if ids := c.IDs(); len(ids) > 0 {
			c.defaultID = ids[0]
		}
		return nil
	}
	if _, ok := c.trees[id]; !ok {
		return fmt.Errorf("quiz: default quiz %q not found in catalog", id)
	}
	c.defaultID = id
	return nil
}

// Get returns the quiz with the given id.
func (c *Catalog) Get(id string) (*Tree, bool) {
	t, ok := c.trees[id]
	return t, ok
}

// Default returns the default quiz, or nil for an empty catalog.
func (c *Catalog) Default() *Tree {
	return c.trees[c.defaultID]
}

// IDs returns quiz ids in sort order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.trees))
	for id := range c.trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns quizzes in id order.
func (c *Catalog) List() []*Tree {
	ids := c.IDs()
	out := make([]*Tree, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.trees[id])
	}
	return out
}

// Len returns the number of quizzes.
func (c *Catalog) Len() int { return len(c.trees) }
