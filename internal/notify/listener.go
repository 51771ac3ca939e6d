package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rioporto/orderdesk/internal/domain"
)

// orderEvent mirrors the payload the ticket service publishes on the orders
// channel.
type orderEvent struct {
	Account string              `json:"account"`
	Order   domain.OrderPayload `json:"order"`
	Result  domain.SubmitResult `json:"result"`
}

// Listener bridges the signal bus to the notifier: it subscribes to the given
// channels and turns order announcements into operator alerts.
type Listener struct {
	bus      domain.SignalBus
	notifier *Notifier
	channels []string
	logger   *slog.Logger
}

// NewListener creates a Listener over the given bus channels.
func NewListener(bus domain.SignalBus, notifier *Notifier, channels []string, logger *slog.Logger) *Listener {
	return &Listener{
		bus:      bus,
		notifier: notifier,
		channels: channels,
		logger:   logger.With(slog.String("component", "notify_listener")),
	}
}

// Run subscribes to the configured channels and dispatches alerts until the
// context is cancelled or the bus subscription closes.
func (l *Listener) Run(ctx context.Context) error {
	msgs, err := l.bus.Subscribe(ctx, l.channels...)
	if err != nil {
		return fmt.Errorf("notify: subscribe: %w", err)
	}
	l.logger.InfoContext(ctx, "listening for alerts",
		slog.Any("channels", l.channels),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			l.handle(ctx, msg)
		}
	}
}

func (l *Listener) handle(ctx context.Context, msg domain.BusMessage) {
	var ev orderEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		l.logger.DebugContext(ctx, "unparseable bus message",
			slog.String("channel", msg.Channel),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := l.notifier.Notify(ctx, orderAlert(ev)); err != nil {
		l.logger.WarnContext(ctx, "alert delivery failed",
			slog.String("client_order_id", ev.Order.ClientOrderID),
			slog.String("error", err.Error()),
		)
	}
}

// orderAlert converts a submitted order announcement into an operator alert.
// The venue's message, when present, rides in the footnote so rejection
// reasons reach the operator verbatim.
func orderAlert(ev orderEvent) Alert {
	verdict := "accepted"
	if !ev.Result.Accepted {
		verdict = "rejected"
	}

	alert := Alert{
		Event: "ticket.submit",
		Title: fmt.Sprintf("Order %s: %s %s %s", verdict, ev.Order.Side, ev.Order.Quantity, ev.Order.Symbol),
		OK:    ev.Result.Accepted,
		Fields: []AlertField{
			{Key: "account", Value: ev.Account},
			{Key: "kind", Value: string(ev.Order.Kind)},
			{Key: "tif", Value: string(ev.Order.TimeInForce)},
		},
		Footnote: ev.Result.Message,
	}
	if !ev.Order.LimitPrice.IsZero() {
		alert.Fields = append(alert.Fields, AlertField{Key: "limit", Value: ev.Order.LimitPrice.String()})
	}
	if ev.Result.VenueOrderID != "" {
		alert.Fields = append(alert.Fields, AlertField{Key: "venue_order", Value: ev.Result.VenueOrderID})
	}
	return alert
}
