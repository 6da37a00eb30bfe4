// Package sessioncache keeps test identities logged in across test cases.
//
// The first Authenticate for an identity drives the real login flow through
// the harness and records the session evidence; later calls revalidate the
// cached evidence and skip the flow when it still holds. Validation runs on
// every reuse and is never cached itself: an entry that was valid a moment
// ago may have expired server-side.
package sessioncache

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kuitang/e2ekit/internal/config"
	"github.com/kuitang/e2ekit/internal/errs"
	"github.com/kuitang/e2ekit/internal/harness"
	"github.com/kuitang/e2ekit/internal/identity"
)

// Entry is cached evidence that an identity holds a live session.
type Entry struct {
	Key       string
	Cookie    string // session cookie value captured right after login
	CreatedAt time.Time
}

// ValidateFunc decides whether a cached entry can still be trusted.
// A nil return reuses the session; any error discards the entry and
// triggers a fresh login.
type ValidateFunc func(ctx context.Context, h harness.Harness, e Entry) error

// Options configure the login flow and validation behavior.
// Zero values fall back to the defaults noted per field.
type Options struct {
	LoginPath        string // default "/login"
	EmailSelector    string // default "#email"
	PasswordSelector string // default "#password"
	SubmitSelector   string // default "button[type='submit']"
	LandingPath      string // default "/"
	ValidatePath     string // default "/api/me"
	SessionCookie    string // default "session_id"

	// WaitTimeout bounds the wait for the login confirmation signal
	// (session cookie present, or navigation away from the login surface).
	WaitTimeout time.Duration // default 5s

	// EntryTTL bounds how long an entry may be reused before a forced
	// fresh login, independent of validation.
	EntryTTL time.Duration // default 30m

	// Validate overrides the reuse check. Default is a live GET against
	// ValidatePath expecting 200; with Offline set, a local evidence-only
	// check that never touches the network.
	Validate ValidateFunc
	Offline  bool
}

// FromConfig derives options from the environment-driven config.
func FromConfig(cfg *config.Config) Options {
	return Options{
		SessionCookie: cfg.SessionCookie,
		WaitTimeout:   cfg.Timeout,
		EntryTTL:      cfg.SessionTTL,
		Offline:       cfg.OfflineValidation,
	}
}

func (o Options) withDefaults() Options {
	if o.LoginPath == "" {
		o.LoginPath = "/login"
	}
	if o.EmailSelector == "" {
		o.EmailSelector = "#email"
	}
	if o.PasswordSelector == "" {
		o.PasswordSelector = "#password"
	}
	if o.SubmitSelector == "" {
		o.SubmitSelector = "button[type='submit']"
	}
	if o.LandingPath == "" {
		o.LandingPath = "/"
	}
	if o.ValidatePath == "" {
		o.ValidatePath = "/api/me"
	}
	if o.SessionCookie == "" {
		o.SessionCookie = "session_id"
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 5 * time.Second
	}
	if o.EntryTTL <= 0 {
		o.EntryTTL = 30 * time.Minute
	}
	return o
}

// Cache is the session cache. One cache owns one harness (one browser
// context); the cookie jar it manages is global to that context.
type Cache struct {
	h       harness.Harness
	reg     *identity.Registry
	opts    Options
	entries *gocache.Cache
	current *identity.Identity
}

// New creates a session cache over the harness and registry.
func New(h harness.Harness, reg *identity.Registry, opts Options) *Cache {
	opts = opts.withDefaults()
	return &Cache{
		h:       h,
		reg:     reg,
		opts:    opts,
		entries: gocache.New(opts.EntryTTL, opts.EntryTTL),
	}
}

// Resolve resolves an identity selector against the registry.
func (c *Cache) Resolve(selector any) (identity.Identity, error) {
	return c.reg.Resolve(selector)
}

// CurrentIdentity returns the identity authenticated last, or nil after
// Logout or before any Authenticate.
func (c *Cache) CurrentIdentity() *identity.Identity {
	if c.current == nil {
		return nil
	}
	id := *c.current
	return &id
}

// Authenticate ensures the browser context holds a live session for the
// selected identity. A valid cached entry short-circuits the login flow;
// an invalid one is discarded and the flow runs once. Both paths end on
// the authenticated landing page.
func (c *Cache) Authenticate(ctx context.Context, selector any) error {
	id, err := c.Resolve(selector)
	if err != nil {
		return err
	}

	key := id.Key()
	if cached, ok := c.entries.Get(key); ok {
		entry := cached.(Entry)
		if err := c.validate(ctx, entry); err == nil {
			return c.reuse(ctx, id, entry)
		}
		// Validation failure is non-fatal: discard and log in fresh.
		c.entries.Delete(key)
		if err := c.h.ClearCookies(ctx); err != nil {
			return fmt.Errorf("clear stale session: %w", err)
		}
	}

	return c.login(ctx, id)
}

// SwitchIdentity clears all session evidence from the previous identity,
// then authenticates the new one. Clearing completes before the login flow
// starts, so nothing from the old identity remains observable.
func (c *Cache) SwitchIdentity(ctx context.Context, selector any) error {
	if err := c.clearEvidence(ctx); err != nil {
		return err
	}
	c.current = nil
	return c.Authenticate(ctx, selector)
}

// Logout clears all local session evidence. Idempotent; cached entries
// survive so a later Authenticate may still reuse a server-side session
// that validation confirms alive.
func (c *Cache) Logout(ctx context.Context) error {
	if err := c.clearEvidence(ctx); err != nil {
		return err
	}
	c.current = nil
	return nil
}

// Forget drops the cached entry for an identity key.
func (c *Cache) Forget(key string) {
	c.entries.Delete(key)
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.entries.Flush()
}

func (c *Cache) clearEvidence(ctx context.Context) error {
	if err := c.h.ClearCookies(ctx); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	if err := c.h.ClearLocalStorage(ctx); err != nil {
		return fmt.Errorf("clear local storage: %w", err)
	}
	return nil
}

func (c *Cache) validate(ctx context.Context, entry Entry) error {
	if c.opts.Validate != nil {
		return c.opts.Validate(ctx, c.h, entry)
	}
	if c.opts.Offline {
		if entry.Cookie == "" {
			return errs.New(errs.ValidationFailed, "no session evidence for "+entry.Key)
		}
		return nil
	}

	// Live check. The cookie must be in the jar for the request to carry it;
	// restore it first in case an earlier test cleared the context.
	if err := c.h.SetCookie(ctx, c.opts.SessionCookie, entry.Cookie); err != nil {
		return errs.Wrap(errs.ValidationFailed, "restore session cookie", err)
	}
	resp, err := c.h.Request(ctx, "GET", c.opts.ValidatePath, nil)
	if err != nil {
		// Timeouts and transport errors invalidate rather than abort.
		return errs.Wrap(errs.ValidationFailed, "session check unreachable", err)
	}
	if resp.StatusCode != 200 {
		return errs.New(errs.ValidationFailed,
			fmt.Sprintf("session check returned %d for %s", resp.StatusCode, entry.Key))
	}
	return nil
}

func (c *Cache) reuse(ctx context.Context, id identity.Identity, entry Entry) error {
	if err := c.h.SetCookie(ctx, c.opts.SessionCookie, entry.Cookie); err != nil {
		return fmt.Errorf("restore session cookie: %w", err)
	}
	if err := c.h.Visit(ctx, c.opts.LandingPath); err != nil {
		return err
	}
	c.current = &id
	return nil
}

func (c *Cache) login(ctx context.Context, id identity.Identity) error {
	if err := c.h.Visit(ctx, c.opts.LoginPath); err != nil {
		return errs.Wrap(errs.AuthenticationFailed, "open login surface", err)
	}

	email, err := c.h.Find(ctx, c.opts.EmailSelector)
	if err != nil {
		return errs.Wrap(errs.AuthenticationFailed, "locate email field", err)
	}
	if err := email.Fill(ctx, id.Email); err != nil {
		return errs.Wrap(errs.AuthenticationFailed, "fill email field", err)
	}

	password, err := c.h.Find(ctx, c.opts.PasswordSelector)
	if err != nil {
		return errs.Wrap(errs.AuthenticationFailed, "locate password field", err)
	}
	if err := password.Fill(ctx, id.Password); err != nil {
		return errs.Wrap(errs.AuthenticationFailed, "fill password field", err)
	}

	submit, err := c.h.Find(ctx, c.opts.SubmitSelector)
	if err != nil {
		return errs.Wrap(errs.AuthenticationFailed, "locate submit control", err)
	}
	if err := submit.Click(ctx); err != nil {
		return errs.Wrap(errs.AuthenticationFailed, "submit credentials", err)
	}

	cookie, err := c.awaitConfirmation(ctx)
	if err != nil {
		return err
	}

	c.entries.Set(id.Key(), Entry{
		Key:       id.Key(),
		Cookie:    cookie,
		CreatedAt: time.Now(),
	}, gocache.DefaultExpiration)

	if id.SeedTask != "" {
		if _, err := c.h.RunTask(ctx, id.SeedTask, id.SeedPayload); err != nil {
			return errs.Wrap(errs.AuthenticationFailed, "run seed task "+id.SeedTask, err)
		}
	}

	c.current = &id
	return nil
}

// awaitConfirmation polls for the login confirmation signal: the session
// cookie appearing, or the page navigating away from the login surface.
func (c *Cache) awaitConfirmation(ctx context.Context) (string, error) {
	deadline := time.Now().Add(c.opts.WaitTimeout)
	for {
		value, ok, err := c.h.GetCookie(ctx, c.opts.SessionCookie)
		if err != nil {
			return "", errs.Wrap(errs.AuthenticationFailed, "read session cookie", err)
		}
		if ok && value != "" {
			return value, nil
		}
		if !strings.Contains(c.h.CurrentURL(), c.opts.LoginPath) {
			// Redirected off the login surface without a readable cookie
			// (e.g. HttpOnly-scoped jar quirks); treat as confirmed.
			return value, nil
		}
		if time.Now().After(deadline) {
			return "", errs.New(errs.AuthenticationFailed,
				fmt.Sprintf("no session after %s (still on %s)", c.opts.WaitTimeout, c.h.CurrentURL()))
		}
		select {
		case <-ctx.Done():
			return "", errs.Wrap(errs.AuthenticationFailed, "login wait canceled", ctx.Err())
		case <-time.After(25 * time.Millisecond):
		}
	}
}
