package adtaxonomy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML override file and merges it over Default. An empty
// path returns Default unchanged.
//
//	selectors:
//	  house: [".house-ad", "div[id^=promo-]"]
//	sizes: ["300x250", "728x90"]
//	script_domains: ["ads.example.net"]
func Load(path string) (*Taxonomy, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("adtaxonomy: read %s: %w", path, err)
	}
	if err := t.Merge(data); err != nil {
		return nil, fmt.Errorf("adtaxonomy: %s: %w", path, err)
	}
	return t, nil
}

// Merge applies a YAML override. Families present in the override replace
// the family of the same name; non-empty lists replace the built-in ones.
func (t *Taxonomy) Merge(data []byte) error {
	var over Taxonomy
	if err := yaml.Unmarshal(data, &over); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if t.Selectors == nil {
		t.Selectors = make(SelectorSet)
	}
	for fam, sels := range over.Selectors {
		if len(sels) == 0 {
			delete(t.Selectors, fam)
			continue
		}
		t.Selectors[fam] = sels
	}
	if len(over.Sizes) > 0 {
		t.Sizes = over.Sizes
	}
	if len(over.ScriptDomains) > 0 {
		t.ScriptDomains = lowerAll(over.ScriptDomains)
	}
	if len(over.IframeKeywords) > 0 {
		t.IframeKeywords = lowerAll(over.IframeKeywords)
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
