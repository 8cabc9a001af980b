package quote

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers a submitted quote to the provider. Message text and
// channel are the implementation's concern.
type Notifier interface {
	Notify(ctx context.Context, sum Summary) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, sum Summary) error

func (f NotifierFunc) Notify(ctx context.Context, sum Summary) error { return f(ctx, sum) }

// LogNotifier writes submitted quotes to a structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, sum Summary) error {
	ev := n.Logger.Info().
		Str("session_id", sum.SessionID).
		Str("template_id", sum.TemplateID).
		Str("provider_id", sum.ProviderID).
		Str("date", sum.Date.String()).
		Str("client", sum.Contact.Name).
		Str("email", sum.Contact.Email).
		Str("phone", sum.Contact.Phone).
		Int("items", len(sum.Items))
	if sum.Breakdown != nil {
		ev = ev.Str("total", sum.Breakdown.Total.String())
	}
	if sum.Availability != nil {
		ev = ev.Str("availability", string(sum.Availability.Status)).Bool("degraded", sum.Availability.Degraded)
	}
	ev.Msg("quote received")
	return nil
}
