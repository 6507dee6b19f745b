package htmldom

import (
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// declarations parses the inline style attribute. A malformed attribute
// reads as empty, as browsers drop what they cannot parse.
func declarations(n *html.Node) []*css.Declaration {
	raw, ok := attr(n, "style")
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	// douceur drops the value of an unterminated last declaration.
	if !strings.HasSuffix(raw, ";") {
		raw += ";"
	}
	decls, err := parser.ParseDeclarations(raw)
	if err != nil {
		return nil
	}
	return decls
}

func styleValue(n *html.Node, prop string) (string, bool) {
	var val string
	found := false
	for _, d := range declarations(n) {
		if strings.EqualFold(d.Property, prop) {
			val, found = strings.TrimSpace(d.Value), true
		}
	}
	return val, found
}

func setStyleProp(n *html.Node, prop, value string, important bool) {
	prop = strings.ToLower(strings.TrimSpace(prop))
	decls := declarations(n)
	replaced := false
	out := decls[:0]
	for _, d := range decls {
		if strings.EqualFold(d.Property, prop) {
			if replaced {
				continue
			}
			d.Property, d.Value, d.Important = prop, value, important
			replaced = true
		}
		out = append(out, d)
	}
	if !replaced {
		out = append(out, &css.Declaration{Property: prop, Value: value, Important: important})
	}
	parts := make([]string, len(out))
	for i, d := range out {
		parts[i] = d.String()
	}
	setAttr(n, "style", strings.Join(parts, " "))
}

// pixels reads a CSS length in px (or a bare number, as in width attributes).
func pixels(v string) (float64, bool) {
	v = strings.TrimSpace(strings.ToLower(v))
	v = strings.TrimSuffix(v, "px")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

func displayed(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if v, ok := styleValue(p, "display"); ok && strings.EqualFold(v, "none") {
			return false
		}
		if _, hidden := attr(p, "hidden"); hidden {
			return false
		}
	}
	return true
}

func dimension(n *html.Node, prop string) float64 {
	if v, ok := styleValue(n, prop); ok {
		if f, ok := pixels(v); ok {
			return f
		}
	}
	if v, ok := attr(n, prop); ok {
		if f, ok := pixels(v); ok {
			return f
		}
	}
	return 0
}
