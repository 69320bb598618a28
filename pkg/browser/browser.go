// Package browser provides a headless-Chrome session, shared across tool
// calls within a process, for the browser tool to drive.
package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithHeadless controls whether the launched Chrome instance runs headless.
func WithHeadless(headless bool) Option {
	return func(m *Manager) { m.headless = headless }
}

// Manager owns a single lazily-launched rod.Browser, reused across tool
// calls until Close is called.
type Manager struct {
	mu       sync.Mutex
	headless bool
	browser  *rod.Browser
}

// New returns a Manager that launches Chrome on first use.
func New(opts ...Option) *Manager {
	m := &Manager{headless: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) ensureBrowser() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != nil {
		return m.browser, nil
	}
	controlURL, err := launcher.New().Headless(m.headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch chrome: %w", err)
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return b, nil
}

// Close shuts down the underlying Chrome process, if one was launched.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.browser = nil
	return err
}

// PageResult is what Navigate extracts from a loaded page.
type PageResult struct {
	Title string
	Text  string
}

// Navigate opens url in a fresh tab, waits for load, and returns the page
// title and visible body text. The tab is closed before returning.
func (m *Manager) Navigate(url string) (*PageResult, error) {
	b, err := m.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("browser: open page: %w", err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser: wait load: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("browser: page info: %w", err)
	}

	body, err := page.Element("body")
	if err != nil {
		return nil, fmt.Errorf("browser: find body: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		return nil, fmt.Errorf("browser: read text: %w", err)
	}

	return &PageResult{Title: info.Title, Text: text}, nil
}

// Click opens url, clicks the first element matching selector, waits for
// any resulting navigation to settle, then returns the resulting page's
// title and text (same shape as Navigate).
func (m *Manager) Click(url, selector string) (*PageResult, error) {
	b, err := m.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("browser: open page: %w", err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser: wait load: %w", err)
	}

	el, err := page.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: find %q: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("browser: click %q: %w", selector, err)
	}
	_ = page.WaitStable(300 * time.Millisecond) // best-effort settle; ignore timeout

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("browser: page info: %w", err)
	}
	body, err := page.Element("body")
	if err != nil {
		return nil, fmt.Errorf("browser: find body: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		return nil, fmt.Errorf("browser: read text: %w", err)
	}

	return &PageResult{Title: info.Title, Text: text}, nil
}
