// Package notify delivers operator alerts about order flow. The listener
// turns bus events into Alerts, and each sender renders an Alert with its
// channel's own markup (Telegram Markdown, Discord embeds).
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Alert is one structured operator notification.
type Alert struct {
	// Event is the desk event type ("ticket.submit"), matched against the
	// notifier's configured event filter.
	Event string
	// Title is the one-line summary shown in every channel.
	Title string
	// OK distinguishes a healthy outcome (order accepted) from a failure
	// (order rejected). Channels that support styling use it.
	OK bool
	// Fields are ordered key/value details (account, kind, limit price).
	Fields []AlertField
	// Footnote carries free text such as the venue's rejection message.
	Footnote string
}

// AlertField is a single labelled detail on an Alert.
type AlertField struct {
	Key   string
	Value string
}

// Sender is one delivery channel for alerts.
type Sender interface {
	// Send renders and delivers a single alert.
	Send(ctx context.Context, alert Alert) error
	// Name identifies the channel in logs (e.g. "telegram").
	Name() string
}

// Notifier fans alerts out to the configured senders, filtering by event
// type. An empty event list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only alerts
// whose Event appears in events pass the filter; an empty events slice
// disables filtering.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// HasSenders reports whether at least one delivery channel is configured.
func (n *Notifier) HasSenders() bool {
	return len(n.senders) > 0
}

// Notify delivers the alert to every sender if its event type passes the
// configured filter.
func (n *Notifier) Notify(ctx context.Context, alert Alert) error {
	if len(n.events) > 0 && !n.events[alert.Event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", alert.Event),
		)
		return nil
	}
	return n.dispatch(ctx, alert)
}

// NotifyAll delivers the alert to every sender regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, alert Alert) error {
	return n.dispatch(ctx, alert)
}

// dispatch sends to every sender, collecting per-sender failures into one
// combined error so a broken webhook never blocks the other channels.
func (n *Notifier) dispatch(ctx context.Context, alert Alert) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, alert); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "alert sent",
				slog.String("sender", s.Name()),
				slog.String("title", alert.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
