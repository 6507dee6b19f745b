// CLAUDE:SUMMARY Replacement strategies (quote, reminder) behind one interface, plus the template markup they clone.
// Package replacement builds the friendly content that takes an ad's place.
//
// A Strategy clones one of the bundled templates and fills it. Strategies
// never fail loudly: a missing template or an empty reminder list yields
// (nil, nil) so the Manager can try the next one.
package replacement

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/hazyhaar/adfriend/dom"
	"github.com/hazyhaar/adfriend/reminders"
)

// Kind is the closed set of strategies.
type Kind int

const (
	KindQuote Kind = iota
	KindReminder
)

func (k Kind) String() string {
	switch k {
	case KindQuote:
		return "quote"
	case KindReminder:
		return "reminder"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// TemplateID returns the id of the template the kind clones.
func (k Kind) TemplateID() string {
	if k == KindReminder {
		return ReminderTemplateID
	}
	return QuoteTemplateID
}

// Strategy produces at most one replacement element per call. A nil element
// with a nil error means "nothing to show".
type Strategy interface {
	Kind() Kind
	CreateElement(ctx context.Context, rect *dom.Rect) (dom.Element, error)
}

// ReminderSource supplies today's reminders. *reminders.Client satisfies it.
type ReminderSource interface {
	TodayReminders(ctx context.Context) ([]reminders.Reminder, error)
}

// Options carries what the strategies need besides the document.
type Options struct {
	// Quotes overrides the bundled list. A non-nil empty slice selects the
	// fallback quote.
	Quotes    []Quote
	Reminders ReminderSource
	Logger    *slog.Logger
	// Rand drives quote selection. Nil uses the global source.
	Rand *rand.Rand
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// New returns the strategy for kind bound to doc.
func New(kind Kind, doc dom.Document, opts Options) (Strategy, error) {
	switch kind {
	case KindQuote:
		return newQuoteStrategy(doc, opts), nil
	case KindReminder:
		if opts.Reminders == nil {
			return nil, fmt.Errorf("replacement: reminder strategy needs a ReminderSource")
		}
		return newReminderStrategy(doc, opts), nil
	}
	return nil, fmt.Errorf("replacement: unknown kind %v", kind)
}

// Defaults returns the strategies in their default priority order:
// reminders first, quotes as the fallback. Without a ReminderSource only
// the quote strategy is returned.
func Defaults(doc dom.Document, opts Options) []Strategy {
	var out []Strategy
	if opts.Reminders != nil {
		out = append(out, newReminderStrategy(doc, opts))
	}
	return append(out, newQuoteStrategy(doc, opts))
}

// sizeTo applies rect to a replacement box when a width is known. A
// non-positive height becomes auto.
func sizeTo(el dom.Element, rect *dom.Rect) error {
	if rect == nil || rect.Width <= 0 {
		return nil
	}
	if err := el.SetStyle("width", px(rect.Width), false); err != nil {
		return err
	}
	h := "auto"
	if rect.Height > 0 {
		h = px(rect.Height)
	}
	return el.SetStyle("height", h, false)
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
