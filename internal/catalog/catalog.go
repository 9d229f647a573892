// Package catalog holds the staff, depot, route, stop and hub lookup tables that
// survey validation and staff login consult. A Catalog is loaded once at startup
// and never mutated afterwards, so it can be shared by reference across requests.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidCatalog signals a structurally broken catalog document.
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Staff is a surveyor allowed to submit.
type Staff struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	PINHash string `yaml:"pin_hash"`
}

// Route is a bus route with its ordered stops.
type Route struct {
	Name  string   `yaml:"name"`
	Stops []string `yaml:"stops"`
}

// Depot groups the routes operated from it.
type Depot struct {
	Name   string  `yaml:"name"`
	Routes []Route `yaml:"routes"`
}

type document struct {
	Staff  []Staff  `yaml:"staff"`
	Depots []Depot  `yaml:"depots"`
	Hubs   []string `yaml:"hubs"`
}

// Catalog is the immutable lookup table set.
type Catalog struct {
	staff      map[string]Staff
	depots     map[string]Depot
	depotOrder []string
	hubs       []string
}

// Load reads and parses a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(doc.Staff, doc.Depots, doc.Hubs)
}

// New validates the entries and builds a Catalog. Names are trimmed; duplicates are rejected.
func New(staff []Staff, depots []Depot, hubs []string) (*Catalog, error) {
	c := &Catalog{
		staff:  make(map[string]Staff, len(staff)),
		depots: make(map[string]Depot, len(depots)),
	}

	for _, s := range staff {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			return nil, fmt.Errorf("%w: staff entry without id", ErrInvalidCatalog)
		}
		if _, dup := c.staff[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate staff id %q", ErrInvalidCatalog, s.ID)
		}
		c.staff[s.ID] = s
	}

	for _, d := range depots {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return nil, fmt.Errorf("%w: depot without name", ErrInvalidCatalog)
		}
		if _, dup := c.depots[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate depot %q", ErrInvalidCatalog, d.Name)
		}
		seen := make(map[string]bool, len(d.Routes))
		routes := make([]Route, 0, len(d.Routes))
		for _, r := range d.Routes {
			r.Name = strings.TrimSpace(r.Name)
			if r.Name == "" || seen[r.Name] {
				return nil, fmt.Errorf("%w: depot %q has an empty or duplicate route", ErrInvalidCatalog, d.Name)
			}
			seen[r.Name] = true
			stops := make([]string, 0, len(r.Stops))
			for _, s := range r.Stops {
				if s = strings.TrimSpace(s); s != "" {
					stops = append(stops, s)
				}
			}
			r.Stops = stops
			routes = append(routes, r)
		}
		d.Routes = routes
		c.depots[d.Name] = d
		c.depotOrder = append(c.depotOrder, d.Name)
	}

	for _, h := range hubs {
		if h = strings.TrimSpace(h); h != "" {
			c.hubs = append(c.hubs, h)
		}
	}

	return c, nil
}

// Staff looks up a surveyor by ID.
func (c *Catalog) Staff(id string) (Staff, bool) {
	s, ok := c.staff[strings.TrimSpace(id)]
	return s, ok
}

// Depots returns depot names in file order.
func (c *Catalog) Depots() []string {
	return append([]string(nil), c.depotOrder...)
}

// Routes returns the route names of a depot, or nil for an unknown depot.
func (c *Catalog) Routes(depot string) []string {
	d, ok := c.depots[depot]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(d.Routes))
	for _, r := range d.Routes {
		names = append(names, r.Name)
	}
	return names
}

// Stops returns the stops of a route operated by the depot.
func (c *Catalog) Stops(depot, route string) []string {
	d, ok := c.depots[depot]
	if !ok {
		return nil
	}
	for _, r := range d.Routes {
		if r.Name == route {
			return append([]string(nil), r.Stops...)
		}
	}
	return nil
}

// Hubs returns hub names in file order.
func (c *Catalog) Hubs() []string {
	return append([]string(nil), c.hubs...)
}
