// Package browser drives a headless Chrome for the unsubscribe agent.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"mailsorter/internal/logger"
)

type Page interface {
	Goto(ctx context.Context, url string) error
	Content(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	// Evaluate runs script inside the page. A thrown exception is returned as an error.
	Evaluate(ctx context.Context, script string) error
}

type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// ChromeLauncher starts a fresh headless Chrome per Launch call.
type ChromeLauncher struct {
	execPath   string
	navTimeout time.Duration
	logger     *logger.Logger
}

func NewChromeLauncher(execPath string, navTimeout time.Duration, logger *logger.Logger) *ChromeLauncher {
	return &ChromeLauncher{execPath: execPath, navTimeout: navTimeout, logger: logger}
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.execPath != "" {
		opts = append(opts, chromedp.ExecPath(l.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logger.Debugf),
		chromedp.WithErrorf(l.logger.Debugf),
	)
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}
	// The browser dies with the caller's context.
	stop := context.AfterFunc(ctx, cancel)

	if err := chromedp.Run(browserCtx); err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &chromeBrowser{
		ctx:        browserCtx,
		navTimeout: l.navTimeout,
		close: func() {
			stop()
			cancel()
		},
	}, nil
}

type chromeBrowser struct {
	ctx        context.Context
	navTimeout time.Duration
	close      func()
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &chromePage{ctx: tabCtx, navTimeout: b.navTimeout}, nil
}

func (b *chromeBrowser) Close() error {
	b.close()
	return nil
}

type chromePage struct {
	ctx        context.Context
	navTimeout time.Duration
}

// run executes actions on the tab, cancelled when ctx is done.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Goto(ctx context.Context, url string) error {
	if err := p.run(ctx, p.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.navTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, p.navTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read page url: %w", err)
	}
	return url, nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string) error {
	wrapped := "(async () => {\n" + script + "\n})()"
	awaitPromise := func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
		return params.WithAwaitPromise(true)
	}
	return p.run(ctx, p.navTimeout, chromedp.Evaluate(wrapped, nil, awaitPromise))
}
