// Package notify implements the low-stock alert: when a consumable's
// on-hand count crosses from above its minimum to at-or-below it, the
// admins get one email, at most one per item per calendar day.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockroom/internal/store"
	"stockroom/internal/types"
)

// Notifier evaluates adjustments and fans alerts out to admin emails.
type Notifier struct {
	store  *store.Store
	logger *zap.Logger

	mu     sync.RWMutex
	mailer Mailer
	sender string

	// now is swappable for tests; the day key uses local time because
	// "once per day" means the organization's day, not UTC's.
	now func() time.Time
}

// New creates a Notifier. A nil mailer disables sending; gating and
// logging still run so the log table stays truthful.
func New(st *store.Store, mailer Mailer, logger *zap.Logger, sender string) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		store:  st,
		mailer: mailer,
		logger: logger,
		sender: sender,
		now:    time.Now,
	}
}

// SetMailer swaps the mailer and sender, used when the email section
// of the config is reloaded.
func (n *Notifier) SetMailer(mailer Mailer, sender string) {
	n.mu.Lock()
	n.mailer = mailer
	n.sender = sender
	n.mu.Unlock()
}

// DayKey formats the calendar day used by the dedup gate.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Result reports what HandleAdjustment did.
type Result struct {
	Triggered  bool     `json:"triggered"`
	Deduped    bool     `json:"deduped"`
	Recipients []string `json:"recipients,omitempty"`
	Outcome    string   `json:"outcome,omitempty"`
}

// HandleAdjustment runs the full gate for one stock adjustment:
// crossing check, daily dedup, admin fan-out, outcome recording.
// Mailer failures are recorded but never returned as errors; a broken
// email provider must not fail the stock adjustment.
func (n *Notifier) HandleAdjustment(ctx context.Context, adj *store.Adjustment) (*Result, error) {
	if !adj.Crossed() {
		return &Result{}, nil
	}
	return n.Alert(ctx, adj.Consumable)
}

// Alert sends the low-stock email for a consumable, subject to the
// once-per-day gate. Used by HandleAdjustment and the webhook.
func (n *Notifier) Alert(ctx context.Context, c *types.Consumable) (*Result, error) {
	day := DayKey(n.now())

	recipients, err := n.store.ListAdminEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admin recipients: %w", err)
	}
	if len(recipients) == 0 {
		n.logger.Warn("low stock but no admin recipients", zap.String("consumable", c.Name))
		return &Result{Triggered: true}, nil
	}

	// Claim today's slot before sending. If the claim fails the email
	// already went out (or is going out) today.
	rec, err := n.store.BeginNotification(ctx, c.ID, day, recipients)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			n.logger.Debug("low-stock alert already sent today",
				zap.String("consumable", c.Name), zap.String("day", day))
			return &Result{Triggered: true, Deduped: true}, nil
		}
		return nil, err
	}

	result := &Result{Triggered: true, Recipients: recipients}

	n.mu.RLock()
	mailer, sender := n.mailer, n.sender
	n.mu.RUnlock()

	if mailer == nil {
		result.Outcome = types.OutcomeError
		_ = n.store.SetNotificationOutcome(ctx, rec.ID, types.OutcomeError)
		n.logger.Warn("low-stock alert skipped, email disabled", zap.String("consumable", c.Name))
		return result, nil
	}

	msg := Message{
		From:    sender,
		To:      recipients,
		Subject: fmt.Sprintf("Low stock: %s", c.Name),
		Text: fmt.Sprintf(
			"%s is low on stock.\n\nLocation: %s\nOn hand: %d %s\nMinimum: %d\n\nTime to reorder.\n",
			c.Name, c.Location, c.Count, c.Unit, c.Minimum),
	}

	if err := mailer.Send(ctx, msg); err != nil {
		result.Outcome = types.OutcomeError
		_ = n.store.SetNotificationOutcome(ctx, rec.ID, types.OutcomeError)
		n.logger.Error("low-stock email failed",
			zap.String("consumable", c.Name), zap.Error(err))
		return result, nil
	}

	result.Outcome = types.OutcomeSent
	_ = n.store.SetNotificationOutcome(ctx, rec.ID, types.OutcomeSent)
	n.logger.Info("low-stock email sent",
		zap.String("consumable", c.Name),
		zap.Int("recipients", len(recipients)))
	return result, nil
}
