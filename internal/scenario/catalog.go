package scenario

import (
	"context"
	"embed"
	"fmt"
	"sync"
)

//go:embed builtin/*.json
var builtinFS embed.FS

// Source supplies published scenarios from outside the process,
// such as the document store.
type Source interface {
	LoadScenarios(ctx context.Context) ([]*Document, error)
}

// Catalog holds the pre-loaded scenarios rooms may be created from.
type Catalog struct {
	mu        sync.RWMutex
	scenarios map[string]*Scenario
	order     []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{scenarios: make(map[string]*Scenario)}
}

// Add registers every scenario of doc. A later document may not reuse an id.
func (c *Catalog) Add(doc *Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sc := range doc.Scenarios {
		if _, dup := c.scenarios[sc.ID]; dup {
			return fmt.Errorf("duplicate scenario id %q", sc.ID)
		}
	}
	for _, sc := range doc.Scenarios {
		c.scenarios[sc.ID] = sc
		c.order = append(c.order, sc.ID)
	}
	return nil
}

// LoadBuiltin adds the scenarios compiled into the binary.
func (c *Catalog) LoadBuiltin() error {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return err
	}
	for _, e := range entries {
		data, err := builtinFS.ReadFile("builtin/" + e.Name())
		if err != nil {
			return err
		}
		doc, err := ParseDocument(data)
		if err != nil {
			return fmt.Errorf("builtin %s: %w", e.Name(), err)
		}
		if err := c.Add(doc); err != nil {
			return err
		}
	}
	return nil
}

// LoadDir adds every scenario file found in dir.
func (c *Catalog) LoadDir(dir string) error {
	docs, err := LoadDir(dir)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := c.Add(doc); err != nil {
			return err
		}
	}
	return nil
}

// LoadSource adds every scenario published by src.
func (c *Catalog) LoadSource(ctx context.Context, src Source) (int, error) {
	docs, err := src.LoadScenarios(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, doc := range docs {
		if err := c.Add(doc); err != nil {
			return n, err
		}
		n += len(doc.Scenarios)
	}
	return n, nil
}

// Get returns a shared scenario by id.
func (c *Catalog) Get(id string) (*Scenario, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.scenarios[id]
	return sc, ok
}

// List returns summaries in load order.
func (c *Catalog) List() []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Summary, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.scenarios[id].Summary())
	}
	return out
}

// Len returns the number of scenarios.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
