package harness

import (
	"context"
	"fmt"
	"strings"
)

// FakeHarness is an in-memory Harness for unit tests. The DOM is a flat
// selector-to-element map, navigation just records the path, and HTTP
// requests go through a caller-supplied Responder. Elements can carry an
// OnClick hook so a test can script what "submitting the login form" does.
type FakeHarness struct {
	// DOM maps a single CSS selector to its element. Find and Count accept
	// comma-joined selector lists and probe each alternative in order.
	DOM map[string]*FakeElement

	// Cookies and LocalStorage model the browser context's shared state.
	Cookies      map[string]string
	LocalStorage map[string]string

	// Responder answers Request calls. Nil means every request errors.
	Responder func(method, url string, body []byte) (*Response, error)

	// Visits records every path passed to Visit, in order.
	Visits []string

	// TaskCalls records every RunTask invocation, in order.
	TaskCalls []TaskCall

	tasks      map[string]TaskFunc
	currentURL string
}

// TaskCall is one recorded RunTask invocation.
type TaskCall struct {
	Name    string
	Payload any
}

// FakeElement is a scriptable DOM element.
type FakeElement struct {
	Value   string
	Content string
	OnClick func(ctx context.Context) error
}

// NewFake returns an empty fake harness.
func NewFake() *FakeHarness {
	return &FakeHarness{
		DOM:          make(map[string]*FakeElement),
		Cookies:      make(map[string]string),
		LocalStorage: make(map[string]string),
		tasks:        make(map[string]TaskFunc),
	}
}

// RegisterTask installs an out-of-band fixture task under name.
func (h *FakeHarness) RegisterTask(name string, fn TaskFunc) {
	h.tasks[name] = fn
}

// SetURL moves the fake page to url, as a scripted navigation side effect.
func (h *FakeHarness) SetURL(url string) {
	h.currentURL = url
}

func (h *FakeHarness) Visit(ctx context.Context, path string) error {
	h.Visits = append(h.Visits, path)
	h.currentURL = path
	return nil
}

func (h *FakeHarness) Find(ctx context.Context, selector string) (Element, error) {
	for _, alt := range splitSelector(selector) {
		if el, ok := h.DOM[alt]; ok {
			return &fakeElementHandle{harness: h, element: el}, nil
		}
	}
	return nil, fmt.Errorf("no element matches %q", selector)
}

func (h *FakeHarness) Count(ctx context.Context, selector string) (int, error) {
	count := 0
	for _, alt := range splitSelector(selector) {
		if _, ok := h.DOM[alt]; ok {
			count++
		}
	}
	return count, nil
}

func (h *FakeHarness) CurrentURL() string {
	return h.currentURL
}

func (h *FakeHarness) SetCookie(ctx context.Context, name, value string) error {
	h.Cookies[name] = value
	return nil
}

func (h *FakeHarness) GetCookie(ctx context.Context, name string) (string, bool, error) {
	value, ok := h.Cookies[name]
	return value, ok, nil
}

func (h *FakeHarness) ClearCookies(ctx context.Context) error {
	h.Cookies = make(map[string]string)
	return nil
}

func (h *FakeHarness) ClearLocalStorage(ctx context.Context) error {
	h.LocalStorage = make(map[string]string)
	return nil
}

func (h *FakeHarness) Request(ctx context.Context, method, url string, body []byte) (*Response, error) {
	if h.Responder == nil {
		return nil, fmt.Errorf("no responder configured for %s %s", method, url)
	}
	return h.Responder(method, url, body)
}

func (h *FakeHarness) RunTask(ctx context.Context, name string, payload any) (any, error) {
	h.TaskCalls = append(h.TaskCalls, TaskCall{Name: name, Payload: payload})
	fn, ok := h.tasks[name]
	if !ok {
		return nil, fmt.Errorf("no task registered under %q", name)
	}
	return fn(ctx, payload)
}

func splitSelector(selector string) []string {
	parts := strings.Split(selector, ",")
	alts := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			alts = append(alts, trimmed)
		}
	}
	return alts
}

type fakeElementHandle struct {
	harness *FakeHarness
	element *FakeElement
}

func (e *fakeElementHandle) Fill(ctx context.Context, value string) error {
	e.element.Value = value
	return nil
}

func (e *fakeElementHandle) Click(ctx context.Context) error {
	if e.element.OnClick == nil {
		return nil
	}
	return e.element.OnClick(ctx)
}

func (e *fakeElementHandle) Text(ctx context.Context) (string, error) {
	return e.element.Content, nil
}
