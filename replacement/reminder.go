package replacement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/adfriend/dom"
	"github.com/hazyhaar/adfriend/reminders"
)

type reminderStrategy struct {
	doc    dom.Document
	source ReminderSource
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	cache  []reminders.Reminder
}

func newReminderStrategy(doc dom.Document, opts Options) *reminderStrategy {
	return &reminderStrategy{doc: doc, source: opts.Reminders, logger: opts.logger()}
}

func (s *reminderStrategy) Kind() Kind { return KindReminder }

// load fetches today's reminders once per strategy. Concurrent callers wait
// for the first fetch. A failed fetch is cached as an empty list.
func (s *reminderStrategy) load(ctx context.Context) []reminders.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cache
	}
	list, err := s.source.TodayReminders(ctx)
	if err != nil {
		s.logger.Warn("replacement: failed to load reminders", "error", err)
		list = nil
	}
	s.cache, s.loaded = list, true
	s.logger.Debug("replacement: reminders loaded", "count", len(list))
	return s.cache
}

func (s *reminderStrategy) CreateElement(ctx context.Context, rect *dom.Rect) (dom.Element, error) {
	box, err := s.doc.CloneTemplate(ReminderTemplateID)
	if errors.Is(err, dom.ErrNotFound) {
		s.logger.Debug("replacement: reminder template missing")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("replacement: clone reminder template: %w", err)
	}

	list := s.load(ctx)
	if len(list) == 0 {
		return nil, nil
	}

	target, err := box.Query(".reminder-list")
	if err != nil {
		s.logger.Warn("replacement: reminder template elements missing")
		return nil, nil
	}
	if err := sizeTo(box, rect); err != nil {
		return nil, err
	}
	for _, r := range list {
		item, err := s.item(r)
		if err != nil {
			return nil, err
		}
		if err := target.AppendChild(item); err != nil {
			return nil, err
		}
	}
	return box, nil
}

func (s *reminderStrategy) item(r reminders.Reminder) (dom.Element, error) {
	item, err := s.div("reminder-item", "")
	if err != nil {
		return nil, err
	}
	text, err := s.div("reminder-text", r.Text)
	if err != nil {
		return nil, err
	}
	at, err := s.div("reminder-time", r.RemindAt)
	if err != nil {
		return nil, err
	}
	if err := item.AppendChild(text); err != nil {
		return nil, err
	}
	if err := item.AppendChild(at); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *reminderStrategy) div(class, text string) (dom.Element, error) {
	el, err := s.doc.CreateElement("div")
	if err != nil {
		return nil, err
	}
	if err := el.SetAttr("class", class); err != nil {
		return nil, err
	}
	if text != "" {
		if err := el.SetText(text); err != nil {
			return nil, err
		}
	}
	return el, nil
}
