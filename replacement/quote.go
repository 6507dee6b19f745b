package replacement

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/hazyhaar/adfriend/dom"
)

//go:embed quotes.json
var quotesJSON []byte

// Quote is one motivational quote.
type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// FallbackQuote is shown when the quote list is empty.
var FallbackQuote = Quote{Text: "Stay positive, work hard, make it happen.", Author: "AdFriend"}

var bundled = sync.OnceValue(func() []Quote {
	var qs []Quote
	if err := json.Unmarshal(quotesJSON, &qs); err != nil {
		panic("replacement: bad embedded quotes.json: " + err.Error())
	}
	return qs
})

// BundledQuotes returns a copy of the embedded quote list.
func BundledQuotes() []Quote {
	return append([]Quote(nil), bundled()...)
}

type quoteStrategy struct {
	doc    dom.Document
	quotes []Quote
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func newQuoteStrategy(doc dom.Document, opts Options) *quoteStrategy {
	qs := opts.Quotes
	if qs == nil {
		qs = bundled()
	}
	return &quoteStrategy{doc: doc, quotes: qs, logger: opts.logger(), rng: opts.Rand}
}

func (s *quoteStrategy) Kind() Kind { return KindQuote }

func (s *quoteStrategy) pick() Quote {
	if len(s.quotes) == 0 {
		return FallbackQuote
	}
	if s.rng == nil {
		return s.quotes[rand.IntN(len(s.quotes))]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quotes[s.rng.IntN(len(s.quotes))]
}

func (s *quoteStrategy) CreateElement(_ context.Context, rect *dom.Rect) (dom.Element, error) {
	box, err := s.doc.CloneTemplate(QuoteTemplateID)
	if errors.Is(err, dom.ErrNotFound) {
		s.logger.Debug("replacement: quote template missing")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("replacement: clone quote template: %w", err)
	}
	text, errText := box.Query(".quote-text")
	author, errAuthor := box.Query(".quote-author")
	if errText != nil || errAuthor != nil {
		s.logger.Warn("replacement: quote template elements missing")
		return nil, nil
	}

	q := s.pick()
	if err := text.SetText(q.Text); err != nil {
		return nil, err
	}
	if err := author.SetText("- " + q.Author); err != nil {
		return nil, err
	}
	if rect != nil && rect.Width > 0 {
		if err := sizeTo(box, rect); err != nil {
			return nil, err
		}
		if err := box.SetStyle("display", "flex", false); err != nil {
			return nil, err
		}
	}
	return box, nil
}
