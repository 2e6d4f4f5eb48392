// Package poller feeds unread inbox mail to the agent on a fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ashutoshrp06/parcel-agent/internal/agent"
	"github.com/ashutoshrp06/parcel-agent/internal/gmail"
	"github.com/ashutoshrp06/parcel-agent/internal/types"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"go.uber.org/zap"
)

// Inbox is the mailbox the poller drains. *gmail.Service implements it.
type Inbox interface {
	FetchUnread(ctx context.Context, maxResults int) ([]types.Email, error)
	MarkAsRead(ctx context.Context, id string) error
}

// Runner answers one query. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, query string, history []models.HistoryEntry, opts ...agent.RunOption) (*agent.Response, error)
}

// Config holds poller settings.
type Config struct {
	Interval   time.Duration
	MaxResults int
}

// Summary counts the outcome of one pass.
type Summary struct {
	Fetched   int
	Processed int
	Failed    int
	Skipped   bool
}

// Poller is an owned background task: Run blocks until its context ends.
type Poller struct {
	inbox      Inbox
	runner     Runner
	interval   time.Duration
	maxResults int
	logger     *zap.Logger

	// one pass at a time
	mu sync.Mutex
}

// New creates a poller.
func New(inbox Inbox, runner Runner, cfg Config, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 120 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		inbox:      inbox,
		runner:     runner,
		interval:   cfg.Interval,
		maxResults: cfg.MaxResults,
		logger:     logger,
	}
}

// Run processes the inbox every interval until ctx is cancelled. The first
// pass happens after one full interval.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Inbox poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Inbox poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Inbox pass failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce runs one pass: fetch unread mail, run the agent on each email
// and mark it read once its run succeeded. A failing email does not stop the
// rest of the batch.
func (p *Poller) ProcessOnce(ctx context.Context) (Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sum Summary

	emails, err := p.inbox.FetchUnread(ctx, p.maxResults)
	if errors.Is(err, gmail.ErrNotAuthenticated) {
		p.logger.Warn("Gmail not authenticated, skipping. Visit /auth/google to authenticate.")
		sum.Skipped = true
		return sum, nil
	}
	if err != nil {
		return sum, fmt.Errorf("fetch unread: %w", err)
	}

	sum.Fetched = len(emails)
	if len(emails) == 0 {
		p.logger.Debug("No new unread emails")
		return sum, nil
	}
	p.logger.Info("Processing unread emails", zap.Int("count", len(emails)))

	for _, email := range emails {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if err := p.process(ctx, email); err != nil {
			sum.Failed++
			p.logger.Error("Failed to process email",
				zap.String("email_id", email.ID),
				zap.Error(err))
			continue
		}
		sum.Processed++
	}
	return sum, nil
}

func (p *Poller) process(ctx context.Context, email types.Email) error {
	p.logger.Info("Processing email",
		zap.String("email_id", email.ID),
		zap.String("from", email.FromEmail),
		zap.String("subject", email.Subject))

	resp, err := p.runner.Run(ctx, email.Query(), nil)
	if err != nil {
		return err
	}

	p.logger.Info("Agent finished email",
		zap.String("email_id", email.ID),
		zap.String("run_id", resp.RunID),
		zap.String("termination", string(resp.Termination)),
		zap.String("response_preview", preview(resp.Response, 200)))

	if err := p.inbox.MarkAsRead(ctx, email.ID); err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}
	return nil
}

// preview cuts s to at most n bytes on a rune boundary.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
