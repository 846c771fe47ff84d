package i18n

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Catalog resolves message keys per language.
type Catalog struct {
	def   Lang
	texts map[Lang]map[string]string
}

// Placeholder marks a key that has no text in the requested language.
func Placeholder(key string) string {
	return "[[" + key + "]]"
}

// Load parses the embedded catalog and, when overridePath is set, merges
// the keys found there on top of it.
func Load(overridePath string, def Lang) (*Catalog, error) {
	c, err := ParseCatalog(embeddedCatalog, def)
	if err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	if overridePath == "" {
		return c, nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("read catalog override: %w", err)
	}
	extra, err := ParseCatalog(data, def)
	if err != nil {
		return nil, fmt.Errorf("catalog override %s: %w", overridePath, err)
	}
	for lang, texts := range extra.texts {
		for k, v := range texts {
			c.texts[lang][k] = v
		}
	}
	return c, nil
}

// ParseCatalog builds a catalog from YAML shaped as language -> key -> text.
func ParseCatalog(data []byte, def Lang) (*Catalog, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	d, ok := Parse(string(def))
	if !ok {
		return nil, fmt.Errorf("unsupported default language %q", def)
	}
	c := &Catalog{def: d, texts: make(map[Lang]map[string]string, len(Supported))}
	for _, l := range Supported {
		c.texts[l] = make(map[string]string)
	}
	for code, texts := range raw {
		lang, ok := Parse(code)
		if !ok {
			return nil, fmt.Errorf("unsupported language %q", code)
		}
		for k, v := range texts {
			c.texts[lang][k] = v
		}
	}
	return c, nil
}

// Default returns the configured default language.
func (c *Catalog) Default() Lang { return c.def }

// Normalize maps an unsupported language to the default.
func (c *Catalog) Normalize(lang Lang) Lang {
	if l, ok := Parse(string(lang)); ok {
		return l
	}
	return c.def
}

// Resolve returns the text for key in lang. Unsupported languages use the
// default; a key missing in the resolved language yields Placeholder(key).
func (c *Catalog) Resolve(key string, lang Lang) string {
	if text, ok := c.texts[c.Normalize(lang)][key]; ok {
		return text
	}
	return Placeholder(key)
}

// Resolvef formats the resolved template with args.
func (c *Catalog) Resolvef(key string, lang Lang, args ...any) string {
	text, ok := c.texts[c.Normalize(lang)][key]
	if !ok {
		return Placeholder(key)
	}
	return fmt.Sprintf(text, args...)
}

// Pick chooses a language-keyed value: the requested language first, then
// the default, then the other supported languages in order. Empty values
// are skipped.
func (c *Catalog) Pick(values map[Lang]string, lang Lang) string {
	order := append([]Lang{c.Normalize(lang), c.def}, Supported...)
	for _, l := range order {
		if v := values[l]; v != "" {
			return v
		}
	}
	return ""
}
