// CLAUDE:SUMMARY Static ad knowledge: network selectors, IAB size catalog, ad script hosts, iframe keywords, nearest-size search.
// Package adtaxonomy holds the static knowledge used to recognise ad slots:
// CSS selectors grouped by ad network, the standard display size catalog,
// the hosts that serve ad-loading scripts and the keywords that flag an
// iframe as ad-bearing.
//
// The zero value is not useful; start from Default and optionally merge a
// YAML override with Load.
package adtaxonomy

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AdSize is a standard display ad format in CSS pixels.
type AdSize struct {
	Width  int
	Height int
}

func (s AdSize) String() string {
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// ParseAdSize reads the "WxH" notation used in config files and in the
// ad-size-WxH class name.
func ParseAdSize(s string) (AdSize, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(strings.ToLower(s)), "x")
	if !ok {
		return AdSize{}, fmt.Errorf("adtaxonomy: size %q: want WxH", s)
	}
	wi, err := strconv.Atoi(w)
	if err != nil || wi <= 0 {
		return AdSize{}, fmt.Errorf("adtaxonomy: size %q: bad width", s)
	}
	hi, err := strconv.Atoi(h)
	if err != nil || hi <= 0 {
		return AdSize{}, fmt.Errorf("adtaxonomy: size %q: bad height", s)
	}
	return AdSize{Width: wi, Height: hi}, nil
}

// UnmarshalYAML accepts "300x250" scalars.
func (s *AdSize) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseAdSize(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML writes the "WxH" notation.
func (s AdSize) MarshalYAML() (any, error) {
	return s.String(), nil
}

// SelectorSet maps an ad network family to the selectors that identify
// its containers.
type SelectorSet map[string][]string

// Families returns the family names in a stable order.
func (s SelectorSet) Families() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Taxonomy is the full classification table used by the replacer.
type Taxonomy struct {
	Selectors      SelectorSet `yaml:"selectors"`
	Sizes          []AdSize    `yaml:"sizes"`
	ScriptDomains  []string    `yaml:"script_domains"`
	IframeKeywords []string    `yaml:"iframe_keywords"`
}

// Union joins every selector of every family into a single compound
// selector list. Duplicates are dropped, first occurrence wins.
func (t *Taxonomy) Union() string {
	seen := make(map[string]bool)
	var parts []string
	for _, fam := range t.Selectors.Families() {
		for _, sel := range t.Selectors[fam] {
			sel = strings.TrimSpace(sel)
			if sel == "" || seen[sel] {
				continue
			}
			seen[sel] = true
			parts = append(parts, sel)
		}
	}
	return strings.Join(parts, ", ")
}

// FindClosestAdSize returns the catalog entry with the smallest Manhattan
// distance to (w, h). Ties keep the earlier entry. A non-positive dimension
// yields 300x250 when cataloged, else the first entry.
func (t *Taxonomy) FindClosestAdSize(w, h float64) AdSize {
	sizes := t.Sizes
	if len(sizes) == 0 {
		sizes = defaultSizes
	}
	if w <= 0 || h <= 0 {
		if i := slices.Index(sizes, AdSize{300, 250}); i >= 0 {
			return sizes[i]
		}
		return sizes[0]
	}

	best := sizes[0]
	bestDist := distance(best, w, h)
	for _, s := range sizes[1:] {
		if d := distance(s, w, h); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

func distance(s AdSize, w, h float64) float64 {
	dw := float64(s.Width) - w
	if dw < 0 {
		dw = -dw
	}
	dh := float64(s.Height) - h
	if dh < 0 {
		dh = -dh
	}
	return dw + dh
}

// IsStandardSize reports whether w x h is exactly a cataloged size.
func (t *Taxonomy) IsStandardSize(w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	return slices.Contains(t.Sizes, AdSize{w, h})
}

// MatchesScriptDomain reports whether src references a known ad host.
func (t *Taxonomy) MatchesScriptDomain(src string) bool {
	if src == "" {
		return false
	}
	src = strings.ToLower(src)
	for _, d := range t.ScriptDomains {
		if strings.Contains(src, d) {
			return true
		}
	}
	return false
}

// HasAdKeyword reports whether s contains any iframe ad keyword.
func (t *Taxonomy) HasAdKeyword(s string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, k := range t.IframeKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (t *Taxonomy) Clone() *Taxonomy {
	out := &Taxonomy{
		Selectors:      make(SelectorSet, len(t.Selectors)),
		Sizes:          slices.Clone(t.Sizes),
		ScriptDomains:  slices.Clone(t.ScriptDomains),
		IframeKeywords: slices.Clone(t.IframeKeywords),
	}
	for k, v := range t.Selectors {
		out.Selectors[k] = slices.Clone(v)
	}
	return out
}
