package harness

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/e2ekit/internal/config"
)

// PlaywrightHarness drives a real browser page through Playwright.
// One harness owns one page in one browser context; cookies and local
// storage are scoped to that context.
type PlaywrightHarness struct {
	page    playwright.Page
	browser playwright.BrowserContext
	baseURL string
	domain  string
	timeout float64 // milliseconds, Playwright convention

	mu    sync.Mutex
	tasks map[string]TaskFunc
}

// NewPlaywright wraps an existing page. The page's browser context is used
// for cookie operations and context-scoped HTTP requests.
func NewPlaywright(page playwright.Page, cfg *config.Config) (*PlaywrightHarness, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	timeoutMS := float64(cfg.Timeout.Milliseconds())
	page.SetDefaultTimeout(timeoutMS)
	page.SetDefaultNavigationTimeout(timeoutMS)

	return &PlaywrightHarness{
		page:    page,
		browser: page.Context(),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		domain:  parsed.Hostname(),
		timeout: timeoutMS,
		tasks:   make(map[string]TaskFunc),
	}, nil
}

// RegisterTask installs an out-of-band fixture task under name.
func (h *PlaywrightHarness) RegisterTask(name string, fn TaskFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks[name] = fn
}

func (h *PlaywrightHarness) absolute(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return h.baseURL + path
}

func (h *PlaywrightHarness) Visit(ctx context.Context, path string) error {
	_, err := h.page.Goto(h.absolute(path), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(h.timeout),
	})
	if err != nil {
		return fmt.Errorf("visit %s: %w", path, err)
	}
	return nil
}

func (h *PlaywrightHarness) Find(ctx context.Context, selector string) (Element, error) {
	first := h.page.Locator(selector).First()
	err := first.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(h.timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	return &playwrightElement{locator: first}, nil
}

func (h *PlaywrightHarness) Count(ctx context.Context, selector string) (int, error) {
	count, err := h.page.Locator(selector).Count()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return count, nil
}

func (h *PlaywrightHarness) CurrentURL() string {
	return h.page.URL()
}

func (h *PlaywrightHarness) SetCookie(ctx context.Context, name, value string) error {
	err := h.browser.AddCookies([]playwright.OptionalCookie{
		{
			Name:     name,
			Value:    value,
			Domain:   playwright.String(h.domain),
			Path:     playwright.String("/"),
			HttpOnly: playwright.Bool(true),
			Secure:   playwright.Bool(false),
			SameSite: playwright.SameSiteAttributeLax,
		},
	})
	if err != nil {
		return fmt.Errorf("set cookie %s: %w", name, err)
	}
	return nil
}

func (h *PlaywrightHarness) GetCookie(ctx context.Context, name string) (string, bool, error) {
	cookies, err := h.browser.Cookies(h.baseURL)
	if err != nil {
		return "", false, fmt.Errorf("read cookies: %w", err)
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, true, nil
		}
	}
	return "", false, nil
}

func (h *PlaywrightHarness) ClearCookies(ctx context.Context) error {
	if err := h.browser.ClearCookies(); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

func (h *PlaywrightHarness) ClearLocalStorage(ctx context.Context) error {
	_, err := h.page.Evaluate(`() => window.localStorage.clear()`)
	if err != nil {
		return fmt.Errorf("clear local storage: %w", err)
	}
	return nil
}

func (h *PlaywrightHarness) Request(ctx context.Context, method, target string, body []byte) (*Response, error) {
	opts := playwright.APIRequestContextFetchOptions{
		Method:  playwright.String(method),
		Timeout: playwright.Float(h.timeout),
	}
	if len(body) > 0 {
		opts.Data = body
	}
	resp, err := h.browser.Request().Fetch(h.absolute(target), opts)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	respBody, err := resp.Body()
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, target, err)
	}
	return &Response{StatusCode: resp.Status(), Body: respBody}, nil
}

func (h *PlaywrightHarness) RunTask(ctx context.Context, name string, payload any) (any, error) {
	h.mu.Lock()
	fn, ok := h.tasks[name]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no task registered under %q", name)
	}
	return fn(ctx, payload)
}

type playwrightElement struct {
	locator playwright.Locator
}

func (e *playwrightElement) Fill(ctx context.Context, value string) error {
	return e.locator.Fill(value)
}

func (e *playwrightElement) Click(ctx context.Context) error {
	return e.locator.Click()
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	return e.locator.InnerText()
}
