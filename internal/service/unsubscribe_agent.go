package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"mailsorter/internal/browser"
	"mailsorter/internal/logger"
	"mailsorter/internal/metrics"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
)

// AgentOptions bounds one unsubscribe run.
type AgentOptions struct {
	MaxIterations int
	SettleDelay   time.Duration
	Timeout       time.Duration
}

// UnsubscribeAgent drives a headless browser through an unsubscribe flow,
// asking the AI for the next page action on every iteration.
type UnsubscribeAgent struct {
	launcher  browser.Launcher
	aiClient  AIClient
	emailRepo repository.EmailRepository
	opts      AgentOptions
	logger    *logger.Logger
}

func NewUnsubscribeAgent(launcher browser.Launcher, aiClient AIClient, emailRepo repository.EmailRepository, opts AgentOptions, logger *logger.Logger) *UnsubscribeAgent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 8
	}
	return &UnsubscribeAgent{
		launcher:  launcher,
		aiClient:  aiClient,
		emailRepo: emailRepo,
		opts:      opts,
		logger:    logger,
	}
}

// Unsubscribe runs the agent for email and stores the final status on it. It never returns an error.
func (a *UnsubscribeAgent) Unsubscribe(ctx context.Context, accountEmail string, email *model.Email) model.UnsubscribeStatus {
	status := a.run(ctx, accountEmail, email)

	metrics.Unsubscribes.WithLabelValues(string(status)).Inc()
	if err := a.emailRepo.SetUnsubscribeStatus(context.WithoutCancel(ctx), email.ID, status); err != nil {
		a.logger.Error("Failed to store unsubscribe status:", email.ID, err)
	}
	return status
}

func (a *UnsubscribeAgent) run(ctx context.Context, accountEmail string, email *model.Email) model.UnsubscribeStatus {
	log := a.logger.With("email_id", email.ID)

	link := strings.TrimSpace(email.UnsubscribeLink)
	if !email.HasUnsubscribeLink || !isWebLink(link) {
		log.Info("No usable unsubscribe link")
		return model.UnsubscribeNoLink
	}

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	b, err := a.launcher.Launch(ctx)
	if err != nil {
		log.Error("Failed to launch browser:", err)
		return model.UnsubscribeFailed
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("Failed to close browser:", err)
		}
	}()

	page, err := b.NewPage(ctx)
	if err != nil {
		log.Error("Failed to open page:", err)
		return model.UnsubscribeFailed
	}
	if err := page.Goto(ctx, link); err != nil {
		log.Error("Failed to open unsubscribe link:", link, err)
		return model.UnsubscribeFailed
	}

	for attempt := 1; attempt <= a.opts.MaxIterations; attempt++ {
		if ctx.Err() != nil {
			log.Warn("Unsubscribe run cancelled:", ctx.Err())
			return model.UnsubscribeFailed
		}

		html, err := page.Content(ctx)
		if err != nil {
			log.Warn("Failed to read page content:", err)
			continue
		}
		current, err := page.URL(ctx)
		if err != nil {
			current = link
		}

		script, err := a.aiClient.GenerateUnsubscribeScript(ctx, UnsubscribeScriptRequest{
			AccountEmail: accountEmail,
			PageURL:      current,
			PageHTML:     html,
			Attempt:      attempt,
		})
		if err != nil {
			log.Warn("Failed to generate page action:", err)
			continue
		}
		if strings.TrimSpace(script) == "" {
			continue
		}

		if err := page.Evaluate(ctx, script); err != nil {
			log.Warn("Page action failed on attempt", attempt, err)
			continue
		}

		if err := sleepContext(ctx, a.opts.SettleDelay); err != nil {
			log.Warn("Interrupted while waiting for the page to settle:", err)
		}
		log.Info("Unsubscribe action completed on attempt", attempt)
		return model.UnsubscribeSucceeded
	}

	log.Warn("Unsubscribe gave up after", a.opts.MaxIterations, "attempts")
	return model.UnsubscribeFailed
}

func isWebLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
