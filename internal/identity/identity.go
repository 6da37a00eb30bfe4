// Package identity defines test-usable accounts and the registry that test
// cases resolve them from.
package identity

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kuitang/e2ekit/internal/errs"
)

// Identity is one test-usable account: credentials plus free-form metadata.
// Identities are immutable after construction.
type Identity struct {
	Name       string
	Email      string
	Password   string
	Attributes map[string]string

	// SeedTask, when set, names a harness task run once after a fresh login
	// for this identity (e.g. seeding database rows). Payload is passed
	// through untouched.
	SeedTask    string
	SeedPayload any

	key string
}

// New builds a registry identity. The cache key is derived from the stable
// fields (email and role), never from volatile metadata, so repeated
// resolutions of the same account share one cached session.
func New(name, email, password string, attrs map[string]string) Identity {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return Identity{
		Name:       name,
		Email:      email,
		Password:   password,
		Attributes: attrs,
		key:        email + "|" + attrs["role"],
	}
}

// NewUser manufactures an always-unique identity. Every call yields a fresh
// email and a fresh key, so factory identities never hit the session cache.
func NewUser() Identity {
	suffix := uuid.NewString()[:8]
	id := New(
		"new-user-"+suffix,
		fmt.Sprintf("user-%s@example.com", suffix),
		"test-password-"+suffix,
		map[string]string{"role": "standard"},
	)
	return id
}

// Key returns the stable cache key for this identity.
func (id Identity) Key() string {
	return id.key
}

// Registry holds named identities and identity factories.
type Registry struct {
	entries   map[string]Identity
	factories map[string]func() Identity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:   make(map[string]Identity),
		factories: make(map[string]func() Identity),
	}
}

// Register adds or replaces a named identity.
func (r *Registry) Register(name string, id Identity) {
	r.entries[name] = id
}

// RegisterFactory adds or replaces a named identity factory. Each Resolve of
// the name invokes the factory, producing a brand-new identity.
func (r *Registry) RegisterFactory(name string, fn func() Identity) {
	r.factories[name] = fn
}

// Resolve turns a selector into an Identity. The selector is either a name
// registered here, or an already-built Identity which passes through as-is.
func (r *Registry) Resolve(selector any) (Identity, error) {
	switch sel := selector.(type) {
	case Identity:
		return sel, nil
	case *Identity:
		if sel == nil {
			return Identity{}, errs.New(errs.UnknownIdentity, "nil identity selector")
		}
		return *sel, nil
	case string:
		if id, ok := r.entries[sel]; ok {
			return id, nil
		}
		if fn, ok := r.factories[sel]; ok {
			return fn(), nil
		}
		return Identity{}, errs.New(errs.UnknownIdentity,
			fmt.Sprintf("identity %q is not registered (known: %v)", sel, r.names()))
	default:
		return Identity{}, errs.New(errs.UnknownIdentity,
			fmt.Sprintf("unsupported identity selector type %T", selector))
	}
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.entries)+len(r.factories))
	for name := range r.entries {
		names = append(names, name)
	}
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the standard registry used across the test suite:
// the four static accounts plus the unique-user factory.
func Default() *Registry {
	r := NewRegistry()
	r.Register("standard", New("standard", "standard@example.com", "standard-pass", map[string]string{
		"role": "standard",
	}))
	r.Register("admin", New("admin", "admin@example.com", "admin-pass", map[string]string{
		"role": "admin",
	}))
	r.Register("premium", New("premium", "premium@example.com", "premium-pass", map[string]string{
		"role": "premium",
	}))

	withData := New("withData", "withdata@example.com", "withdata-pass", map[string]string{
		"role":   "standard",
		"seeded": "true",
	})
	withData.SeedTask = "db:seed"
	withData.SeedPayload = map[string]string{"fixture": "starter-notes"}
	r.Register("withData", withData)

	r.RegisterFactory("newUser", NewUser)
	return r
}
