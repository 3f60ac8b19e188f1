package browser

import (
	"context"
	"sync"
)

// MockPage is a scripted Page for tests.
type MockPage struct {
	GotoFunc     func(ctx context.Context, url string) error
	ContentFunc  func(ctx context.Context) (string, error)
	URLFunc      func(ctx context.Context) (string, error)
	EvaluateFunc func(ctx context.Context, script string) error

	mu        sync.Mutex
	visited   []string
	evaluated []string
}

func (p *MockPage) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	p.visited = append(p.visited, url)
	p.mu.Unlock()
	if p.GotoFunc != nil {
		return p.GotoFunc(ctx, url)
	}
	return nil
}

func (p *MockPage) Content(ctx context.Context) (string, error) {
	if p.ContentFunc != nil {
		return p.ContentFunc(ctx)
	}
	return "<html><body><button>Unsubscribe</button></body></html>", nil
}

func (p *MockPage) URL(ctx context.Context) (string, error) {
	if p.URLFunc != nil {
		return p.URLFunc(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.visited) == 0 {
		return "about:blank", nil
	}
	return p.visited[len(p.visited)-1], nil
}

func (p *MockPage) Evaluate(ctx context.Context, script string) error {
	p.mu.Lock()
	p.evaluated = append(p.evaluated, script)
	p.mu.Unlock()
	if p.EvaluateFunc != nil {
		return p.EvaluateFunc(ctx, script)
	}
	return nil
}

func (p *MockPage) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

func (p *MockPage) Evaluated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evaluated...)
}

// MockBrowser hands out one page per NewPage call from NewPageFunc, or a default MockPage.
type MockBrowser struct {
	NewPageFunc func(ctx context.Context) (Page, error)

	mu     sync.Mutex
	closed int
}

func (b *MockBrowser) NewPage(ctx context.Context) (Page, error) {
	if b.NewPageFunc != nil {
		return b.NewPageFunc(ctx)
	}
	return &MockPage{}, nil
}

func (b *MockBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *MockBrowser) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// MockLauncher returns browsers built by NewBrowser and keeps them for inspection.
type MockLauncher struct {
	NewBrowser func() (*MockBrowser, error)

	mu       sync.Mutex
	browsers []*MockBrowser
}

func (l *MockLauncher) Launch(ctx context.Context) (Browser, error) {
	newBrowser := l.NewBrowser
	if newBrowser == nil {
		newBrowser = func() (*MockBrowser, error) { return &MockBrowser{}, nil }
	}
	b, err := newBrowser()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.browsers = append(l.browsers, b)
	l.mu.Unlock()
	return b, nil
}

func (l *MockLauncher) Browsers() []*MockBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*MockBrowser(nil), l.browsers...)
}
