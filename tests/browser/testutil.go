// Package browser provides shared utilities for Playwright tests of the
// e2e toolkit. Tests run against a local fixture app: a cookie-session web
// app with a login form, a dashboard, and a session check endpoint.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/e2ekit/internal/config"
	"github.com/kuitang/e2ekit/internal/harness"
	"github.com/kuitang/e2ekit/internal/identity"
	"github.com/kuitang/e2ekit/internal/sessioncache"
)

const browserMaxTimeout = 5 * time.Second

var (
	pwMu      sync.Mutex
	pwHandle  *playwright.Playwright
	pwBrowser playwright.Browser
	pwErr     error
	pwStarted bool
)

// launchBrowser starts Playwright and Chromium once for the whole package.
// Skips the calling test when Playwright is not available.
func launchBrowser(t *testing.T) playwright.Browser {
	t.Helper()

	pwMu.Lock()
	defer pwMu.Unlock()

	if !pwStarted {
		pwStarted = true
		pwHandle, pwErr = playwright.Run()
		if pwErr == nil {
			pwBrowser, pwErr = pwHandle.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
				Headless: playwright.Bool(true),
			})
			if pwErr != nil {
				_ = pwHandle.Stop()
			}
		}
	}
	if pwErr != nil {
		t.Skip("Playwright not available:", pwErr)
	}
	return pwBrowser
}

func stopBrowser() {
	pwMu.Lock()
	defer pwMu.Unlock()
	if pwBrowser != nil {
		_ = pwBrowser.Close()
	}
	if pwHandle != nil {
		_ = pwHandle.Stop()
	}
}

func TestMain(m *testing.M) {
	code := m.Run()
	stopBrowser()
	os.Exit(code)
}

// =============================================================================
// Fixture app
// =============================================================================

// fixtureApp is the application under test: form login, cookie sessions,
// a dashboard page, and a JSON session check. The markup deliberately mixes
// the three test hook spellings so the selector shim gets exercised.
type fixtureApp struct {
	mu       sync.Mutex
	creds    map[string]string // email -> password
	roles    map[string]string // email -> role
	sessions map[string]string // session id -> email
	seeds    map[string]int    // email -> seeded fixture rows
	logins   int               // completed logins
}

func newFixtureApp() *fixtureApp {
	return &fixtureApp{
		creds:    make(map[string]string),
		roles:    make(map[string]string),
		sessions: make(map[string]string),
		seeds:    make(map[string]int),
	}
}

// Allow registers an identity's credentials with the app.
func (a *fixtureApp) Allow(id identity.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds[id.Email] = id.Password
	a.roles[id.Email] = id.Attributes["role"]
}

// LoginCount returns how many logins completed.
func (a *fixtureApp) LoginCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logins
}

// RevokeSessions invalidates every live session server-side.
func (a *fixtureApp) RevokeSessions() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = make(map[string]string)
}

// SeedCount returns how many times the seed task ran for an email.
func (a *fixtureApp) SeedCount(email string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seeds[email]
}

// Seed records a seeding run for an email, standing in for real fixture rows.
func (a *fixtureApp) Seed(email string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seeds[email]++
}

func (a *fixtureApp) currentEmail(r *http.Request) (string, bool) {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		return "", false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	email, ok := a.sessions[cookie.Value]
	return email, ok
}

func (a *fixtureApp) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html><body>
<h1 data-testid="login-title">Sign in</h1>
<form method="post" action="/login">
  <input id="email" name="email" data-testid="login-email">
  <input id="password" name="password" type="password" data-cy="login-password">
  <button type="submit" testID="login-submit">Sign in</button>
</form>
</body></html>`)
	})

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		email := r.PostFormValue("email")
		password := r.PostFormValue("password")

		a.mu.Lock()
		want, ok := a.creds[email]
		if !ok || want != password {
			a.mu.Unlock()
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `<!DOCTYPE html><html><body>
<div data-testid="login-error">Invalid credentials</div>
</body></html>`)
			return
		}
		sid := uuid.NewString()
		a.sessions[sid] = email
		a.logins++
		a.mu.Unlock()

		http.SetCookie(w, &http.Cookie{
			Name:     "session_id",
			Value:    sid,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	mux.HandleFunc("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		email, ok := a.currentEmail(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		a.mu.Lock()
		role := a.roles[email]
		a.mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html><body>
<span data-testid="current-user">%s</span>
<span data-cy="current-role">%s</span>
<a href="/login" testID="switch-account">Switch account</a>
</body></html>`, email, role)
	})

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.currentEmail(r); ok {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})

	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		email, ok := a.currentEmail(r)
		if !ok {
			http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"email":%q}`, email)
	})

	return mux
}

// =============================================================================
// Test environment
// =============================================================================

// browserEnv wires a fixture app, a fresh browser context, and the toolkit
// under test. Each test gets its own app and context; the browser itself is
// shared across the package.
type browserEnv struct {
	App      *fixtureApp
	Server   *httptest.Server
	Harness  *harness.PlaywrightHarness
	Registry *identity.Registry
	Cache    *sessioncache.Cache
}

func setupBrowserEnv(t *testing.T) *browserEnv {
	t.Helper()

	app := newFixtureApp()
	server := httptest.NewServer(app.handler())
	t.Cleanup(server.Close)

	b := launchBrowser(t)
	browserCtx, err := b.NewContext()
	if err != nil {
		t.Fatalf("could not create browser context: %v", err)
	}
	t.Cleanup(func() { _ = browserCtx.Close() })

	page, err := browserCtx.NewPage()
	if err != nil {
		t.Fatalf("could not create page: %v", err)
	}

	cfg := &config.Config{
		BaseURL:       server.URL,
		Headless:      true,
		Timeout:       browserMaxTimeout,
		SessionCookie: "session_id",
		SessionTTL:    30 * time.Minute,
	}
	h, err := harness.NewPlaywright(page, cfg)
	if err != nil {
		t.Fatalf("could not create harness: %v", err)
	}

	reg := identity.Default()
	for _, name := range []string{"standard", "admin", "premium", "withData"} {
		id, err := reg.Resolve(name)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		app.Allow(id)
	}

	// Out-of-band fixture seeding: resolve the freshly minted session to its
	// email and record a seeding run against the app's data.
	h.RegisterTask("db:seed", func(ctx context.Context, payload any) (any, error) {
		sid, ok, err := h.GetCookie(ctx, "session_id")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("db:seed requires an authenticated session")
		}
		app.mu.Lock()
		email := app.sessions[sid]
		app.mu.Unlock()
		if email == "" {
			return nil, fmt.Errorf("db:seed found no session for cookie")
		}
		app.Seed(email)
		return nil, nil
	})

	cache := sessioncache.New(h, reg, sessioncache.FromConfig(cfg))

	return &browserEnv{
		App:      app,
		Server:   server,
		Harness:  h,
		Registry: reg,
		Cache:    cache,
	}
}
