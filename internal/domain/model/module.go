package model

import "strings"

// Module is a feature area gated independently.
type Module struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SponsorLink string `json:"sponsor_link"`
	Color       string `json:"color,omitempty"`
	CodePrefix  string `json:"-"`
}

// Catalog is the closed, ordered set of known modules.
type Catalog struct {
	modules []Module
	index   map[string]int
}

func NewCatalog(modules []Module) *Catalog {
	c := &Catalog{index: make(map[string]int, len(modules))}
	for _, m := range modules {
		m.ID = NormalizeModule(m.ID)
		if m.ID == "" {
			continue
		}
		if _, dup := c.index[m.ID]; dup {
			continue
		}
		c.index[m.ID] = len(c.modules)
		c.modules = append(c.modules, m)
	}
	return c
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

func (c *Catalog) Get(id string) (Module, bool) {
	i, ok := c.index[id]
	if !ok {
		return Module{}, false
	}
	return c.modules[i], true
}

// IDs returns module ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.modules))
	for i, m := range c.modules {
		ids[i] = m.ID
	}
	return ids
}

func (c *Catalog) All() []Module {
	out := make([]Module, len(c.modules))
	copy(out, c.modules)
	return out
}

// DisplayName falls back to the id for unknown modules.
func (c *Catalog) DisplayName(id string) string {
	if m, ok := c.Get(id); ok && m.Name != "" {
		return m.Name
	}
	return id
}

// NormalizeModule trims and lowercases a module id.
func NormalizeModule(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
