package catalog

import "fmt"

// Catalog is an ordered collection of site descriptors. Iteration follows
// the source document's declaration order, which also fixes the order of
// reports and archives built from a run.
type Catalog struct {
	names []string
	sites map[string]*Descriptor
}

// New creates an empty catalog. Most callers obtain catalogs from Load,
// Parse, or Fetch instead; New exists for programmatic construction.
func New() *Catalog {
	return &Catalog{
		sites: make(map[string]*Descriptor),
	}
}

// Add appends a descriptor to the catalog.
func (c *Catalog) Add(d *Descriptor) error {
	if d.Name == "" {
		return ErrEmptySiteName
	}
	if _, exists := c.sites[d.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSite, d.Name)
	}
	c.names = append(c.names, d.Name)
	c.sites[d.Name] = d
	return nil
}

// Len returns the number of sites.
func (c *Catalog) Len() int {
	return len(c.names)
}

// Names returns the site names in catalog order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Get returns the descriptor for the named site.
func (c *Catalog) Get(name string) (*Descriptor, bool) {
	d, ok := c.sites[name]
	return d, ok
}

// Sites returns all descriptors in catalog order.
func (c *Catalog) Sites() []*Descriptor {
	out := make([]*Descriptor, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.sites[name])
	}
	return out
}

// Filter returns a catalog restricted to the named sites. Naming a site the
// catalog does not contain is an error rather than a silent skip, because a
// typo would otherwise read as "username available everywhere". The filtered
// catalog preserves catalog order, not argument order.
func (c *Catalog) Filter(names ...string) (*Catalog, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := c.sites[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSite, name)
		}
		wanted[name] = true
	}

	filtered := New()
	for _, name := range c.names {
		if wanted[name] {
			// Add cannot fail here: names came from this catalog.
			_ = filtered.Add(c.sites[name]) //nolint:errcheck
		}
	}
	return filtered, nil
}

// WithoutNSFW returns a catalog with NSFW-flagged sites removed.
func (c *Catalog) WithoutNSFW() *Catalog {
	filtered := New()
	for _, name := range c.names {
		if d := c.sites[name]; !d.NSFW {
			_ = filtered.Add(d) //nolint:errcheck
		}
	}
	return filtered
}
