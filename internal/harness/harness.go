// Package harness abstracts the browser automation surface consumed by the
// session cache, the selector shim, and test cases.
//
// Two implementations exist: Playwright (real browser, used by tests/browser)
// and Fake (in-memory, used by unit tests). All blocking operations take a
// context; the underlying runner may queue the actual browser work.
package harness

import "context"

// Harness provides the test-runner primitives shared by all components.
type Harness interface {
	// Visit navigates to a path relative to the configured base URL and
	// waits for the document to load.
	Visit(ctx context.Context, path string) error

	// Find waits for the first element matching the CSS selector to become
	// visible and returns it.
	Find(ctx context.Context, selector string) (Element, error)

	// Count returns how many elements currently match the selector,
	// without waiting.
	Count(ctx context.Context, selector string) (int, error)

	// CurrentURL returns the page's current URL.
	CurrentURL() string

	// Cookie access on the shared browser context.
	SetCookie(ctx context.Context, name, value string) error
	GetCookie(ctx context.Context, name string) (value string, ok bool, err error)
	ClearCookies(ctx context.Context) error

	// ClearLocalStorage clears the page's local storage.
	ClearLocalStorage(ctx context.Context) error

	// Request issues an HTTP request through the browser context, so cookies
	// set by the page apply. url may be relative to the base URL.
	Request(ctx context.Context, method, url string, body []byte) (*Response, error)

	// RunTask invokes a registered out-of-band fixture task (database
	// seeding and the like) by name.
	RunTask(ctx context.Context, name string, payload any) (any, error)
}

// Element is a located DOM element.
type Element interface {
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
}

// Response is the result of a Harness.Request call.
type Response struct {
	StatusCode int
	Body       []byte
}

// TaskFunc is an out-of-band fixture task.
type TaskFunc func(ctx context.Context, payload any) (any, error)
