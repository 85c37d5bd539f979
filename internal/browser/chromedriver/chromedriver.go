// Package chromedriver implements browser.BrowserDriver over chromedp,
// one ChromeDPDriver per session (single-writer, matching the
// pipeline's single-writer-per-run ordering guarantee).
package chromedriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/lumenforge/aria/internal/browser"
	"github.com/lumenforge/aria/internal/logutil"
)

// Config configures the headless Chrome session.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	ProxyURL       string
	Timeout        time.Duration
}

// ChromeDPDriver implements browser.BrowserDriver against a single
// headless Chrome session. Every action runs on the driver's own session
// context (bounded by Config.Timeout and ended by Close); the ctx argument
// of each method is not used, so cancelling it does not interrupt an
// in-flight action.
type ChromeDPDriver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	config      Config
	logger      *zap.Logger
	mu          sync.Mutex
}

var _ browser.BrowserDriver = (*ChromeDPDriver)(nil)

// NewChromeDPDriver starts a headless Chrome session and returns a
// driver bound to it. logger is bridged from the pipeline's
// logutil.LoggerInterface so chromedp's own debug trace lands in the
// same structured log stream as everything else.
func NewChromeDPDriver(cfg Config, pipelineLogger logutil.LoggerInterface) (*ChromeDPDriver, error) {
	zapLogger := bridgeLogger(pipelineLogger)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			zapLogger.Sugar().Debugf(format, args...)
		}),
	)
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	}

	driver := &ChromeDPDriver{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		config:      cfg,
		logger:      zapLogger.With(zap.String("component", "chromedriver")),
	}

	if err := chromedp.Run(ctx); err != nil {
		allocCancel()
		cancel()
		return nil, fmt.Errorf("starting headless chrome: %w", err)
	}
	driver.logger.Info("browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_w", cfg.ViewportWidth),
		zap.Int("viewport_h", cfg.ViewportHeight))
	return driver, nil
}

// Navigate implements browser.BrowserDriver.
func (d *ChromeDPDriver) Navigate(ctx context.Context, url string) (browser.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger.Debug("navigating", zap.String("url", url))
	if err := chromedp.Run(d.ctx, chromedp.Navigate(url)); err != nil {
		return browser.Result{Success: false, Error: err.Error()}, err
	}
	return browser.Result{Success: true}, nil
}

// Click implements browser.BrowserDriver.
func (d *ChromeDPDriver) Click(ctx context.Context, selector string) (browser.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger.Debug("clicking", zap.String("selector", selector))
	if err := chromedp.Run(d.ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return browser.Result{Success: false, Error: err.Error()}, err
	}
	return browser.Result{Success: true}, nil
}

// InputText implements browser.BrowserDriver.
func (d *ChromeDPDriver) InputText(ctx context.Context, selector, text string, clearFirst bool) (browser.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger.Debug("typing", zap.String("selector", selector))

	var actions []chromedp.Action
	if clearFirst {
		actions = append(actions, chromedp.Clear(selector, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.SendKeys(selector, text, chromedp.ByQuery))

	if err := chromedp.Run(d.ctx, actions...); err != nil {
		return browser.Result{Success: false, Error: err.Error()}, err
	}
	return browser.Result{Success: true}, nil
}

// SelectOption implements browser.BrowserDriver by clicking selector to
// open it, then setting its value to value.
func (d *ChromeDPDriver) SelectOption(ctx context.Context, selector, value string) (browser.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger.Debug("selecting option", zap.String("selector", selector), zap.String("value", value))
	if err := chromedp.Run(d.ctx,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	); err != nil {
		return browser.Result{Success: false, Error: err.Error()}, err
	}
	return browser.Result{Success: true}, nil
}

// GetElementText implements browser.BrowserDriver.
func (d *ChromeDPDriver) GetElementText(ctx context.Context, selector string) (browser.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var text string
	if err := chromedp.Run(d.ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return browser.Result{Success: false, Error: err.Error()}, err
	}
	return browser.Result{Success: true, Text: text}, nil
}

// TakeScreenshot implements browser.BrowserDriver, writing a full-page
// PNG screenshot to filename.
func (d *ChromeDPDriver) TakeScreenshot(ctx context.Context, filename string) (browser.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf []byte
	if err := chromedp.Run(d.ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return browser.Result{Success: false, Error: err.Error()}, err
	}
	if err := writeFile(filename, buf); err != nil {
		return browser.Result{Success: false, Error: err.Error()}, err
	}
	return browser.Result{Success: true, Text: filename}, nil
}

// Close shuts down the browser session.
func (d *ChromeDPDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger.Info("closing browser session")
	d.cancel()
	d.allocCancel()
	return nil
}
