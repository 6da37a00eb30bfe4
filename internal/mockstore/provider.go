package mockstore

import "sort"

// Provider is an explicit registry of named mock stores. Components under
// test look their stores up here instead of reaching for the real ones.
// Construct one per test and let it go out of scope on teardown; there is
// deliberately no process-wide instance.
type Provider struct {
	stores map[string]*Store
}

// NewProvider returns an empty provider.
func NewProvider() *Provider {
	return &Provider{stores: make(map[string]*Store)}
}

// Install registers the given stores by name. Only the named slots are
// overwritten; stores installed earlier under other names are untouched.
func (p *Provider) Install(stores map[string]*Store) {
	for name, store := range stores {
		p.stores[name] = store
	}
}

// Get returns the store installed under name.
func (p *Provider) Get(name string) (*Store, bool) {
	store, ok := p.stores[name]
	return store, ok
}

// Names returns the installed store names, sorted.
func (p *Provider) Names() []string {
	names := make([]string, 0, len(p.stores))
	for name := range p.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
