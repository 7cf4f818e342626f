// Package browser drives Chrome through go-rod to list categories, discover
// pins and read pin pages.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"pinscraper/pkg/config"
	"pinscraper/pkg/logger"
)

// Manager owns the single browser session of a run
type Manager struct {
	cfg     config.BrowserConfig
	logger  logger.Logger
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewManager creates a manager; the browser starts on first use
func NewManager(cfg config.BrowserConfig, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{cfg: cfg, logger: log}
}

// Start launches a local Chrome, or connects to RemoteURL when set
func (m *Manager) Start() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != nil {
		return m.browser, nil
	}

	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		m.logger.WithField("url", wsURL).Info("Connecting to remote browser")
	} else {
		l := launcher.New().Headless(m.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.logger.WithFields(map[string]interface{}{"url": wsURL, "headless": m.cfg.Headless}).Info("Launched local browser")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		m.killLauncher()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return b, nil
}

// Close shuts the browser down
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.killLauncher()
	return err
}

func (m *Manager) killLauncher() {
	if m.lnch != nil {
		m.lnch.Kill()
		m.lnch = nil
	}
}

// open creates a tab, navigates to url and waits for the load event
func (m *Manager) open(ctx context.Context, url string) (*rod.Page, error) {
	b, err := m.Start()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	timeout := m.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.logger.WithField("url", url).WithError(err).Warn("Wait for load timed out")
	}
	if err := sleep(ctx, m.cfg.SettleDelay); err != nil {
		page.Close()
		return nil, err
	}
	return page, nil
}

// evalString runs js, which must return a string, on page
func evalString(ctx context.Context, page *rod.Page, js string) (string, error) {
	res, err := page.Context(ctx).Eval(js)
	if err != nil {
		return "", fmt.Errorf("browser: eval: %w", err)
	}
	return res.Value.Str(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
