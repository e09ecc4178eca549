// Package site serves the static parts of the website: content pages, the
// fundraising and store catalogs, and acknowledgements for forms that have
// no backing workflow.
package site

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"eastviewpta.org/internal/pta"
)

//go:embed catalog.json
var catalogJSON []byte

type Goal struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	TargetCents  int64  `json:"target_cents"`
	CurrentCents int64  `json:"current_cents"`
	Deadline     string `json:"deadline"`
}

// Progress is the share of the target raised, capped at 100.
func (g Goal) Progress() int {
	if g.TargetCents <= 0 {
		return 0
	}
	p := int(g.CurrentCents * 100 / g.TargetCents)
	if p > 100 {
		p = 100
	}
	return p
}

func (g Goal) MarshalJSON() ([]byte, error) {
	type alias Goal
	return json.Marshal(struct {
		alias
		Progress int `json:"progress"`
	}{alias(g), g.Progress()})
}

type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Category    string `json:"category"`
	Image       string `json:"image"`
	InStock     bool   `json:"in_stock"`
}

type Opportunity struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	TimeCommitment string   `json:"time_commitment"`
	Skills         []string `json:"skills"`
	Contact        string   `json:"contact"`
}

// Catalog is read-only after Load.
type Catalog struct {
	Pages         map[string]json.RawMessage `json:"pages"`
	Goals         []Goal                     `json:"goals"`
	Items         []Item                     `json:"items"`
	Opportunities []Opportunity              `json:"opportunities"`
}

// Load decodes the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogJSON)
}

func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("site catalog: %w", err)
	}
	if c.Pages == nil {
		c.Pages = map[string]json.RawMessage{}
	}
	return &c, nil
}

// Page returns the content document for name.
func (c *Catalog) Page(name string) (json.RawMessage, error) {
	p, ok := c.Pages[name]
	if !ok {
		return nil, fmt.Errorf("page %q %w", name, pta.ErrNotFound)
	}
	return p, nil
}

func (c *Catalog) PageNames() []string {
	names := make([]string, 0, len(c.Pages))
	for n := range c.Pages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Item(id string) (Item, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func (c *Catalog) Opportunity(id string) (Opportunity, bool) {
	for _, o := range c.Opportunities {
		if o.ID == id {
			return o, true
		}
	}
	return Opportunity{}, false
}
