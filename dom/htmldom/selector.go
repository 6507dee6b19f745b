package htmldom

import (
	"fmt"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// selectorCache keeps compiled selector groups. The ad selector union is
// long and evaluated on every mutation batch, so compiling it once matters.
type selectorCache struct {
	mu    sync.Mutex
	byKey map[string]cascadia.SelectorGroup
}

func newSelectorCache() *selectorCache {
	return &selectorCache{byKey: make(map[string]cascadia.SelectorGroup)}
}

func (c *selectorCache) get(selector string) (cascadia.SelectorGroup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.byKey[selector]; ok {
		return g, nil
	}
	g, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("htmldom: selector %q: %w", selector, err)
	}
	c.byKey[selector] = g
	return g, nil
}

// walk visits element descendants of n in document order. Template
// contents are inert and never visited. Returning false from fn stops the walk.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if !fn(c) {
			return false
		}
		if c.DataAtom == atom.Template {
			continue
		}
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func queryAll(n *html.Node, m cascadia.Matcher) []*html.Node {
	var out []*html.Node
	walk(n, func(c *html.Node) bool {
		if m.Match(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// inTemplate reports whether n sits inside template content.
func inTemplate(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom == atom.Template {
			return true
		}
	}
	return false
}

func contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
