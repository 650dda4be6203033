package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/NewsGoat/internal/config"
)

// BrowserRenderer implements Renderer with a headless Chromium driven by Rod.
// The browser is launched on first use and shared by later renders.
type BrowserRenderer struct {
	cfg       *config.RenderConfig
	userAgent string
	acceptLng string
	logger    *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserRenderer creates a renderer. No browser is started until Render is called.
func NewBrowserRenderer(cfg *config.Config, logger *slog.Logger) *BrowserRenderer {
	return &BrowserRenderer{
		cfg:       &cfg.Render,
		userAgent: cfg.Fetcher.UserAgent,
		acceptLng: cfg.Fetcher.AcceptLanguage,
		logger:    logger.With("component", "renderer"),
	}
}

// Render loads url, waits for network idle and the configured selector,
// scrolls to the bottom and returns the page HTML.
func (r *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	start := time.Now()

	browser, err := r.ensureBrowser()
	if err != nil {
		return "", err
	}

	var page *rod.Page
	if r.cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      r.userAgent,
		AcceptLanguage: r.acceptLng,
	}); err != nil {
		r.logger.Warn("failed to set user agent", "error", err)
	}

	p := page.Context(ctx).Timeout(r.cfg.Timeout)
	waitIdle := p.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	waitIdle()

	if r.cfg.WaitSelector != "" {
		if _, err := page.Context(ctx).Timeout(r.cfg.SelectorWait).Element(r.cfg.WaitSelector); err != nil {
			r.logger.Debug("wait selector not found, continuing", "selector", r.cfg.WaitSelector, "url", url)
		}
	}

	if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		r.logger.Debug("scroll failed", "url", url, "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read rendered html: %w", err)
	}

	r.logger.Debug("render complete", "url", url, "size", len(html), "duration", time.Since(start))
	return html, nil
}

// Close shuts down the browser if it was started.
func (r *BrowserRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

func (r *BrowserRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().
		Headless(r.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	r.browser = browser
	r.logger.Info("browser renderer ready", "headless", r.cfg.Headless, "stealth", r.cfg.Stealth)
	return browser, nil
}
