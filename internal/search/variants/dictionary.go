package variants

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dictionary holds the known brand and category keywords.
type Dictionary struct {
	brands     []string
	categories []string
}

// DictionaryFile is the on-disk format of SEARCH_DICTIONARY_FILE.
//
//	brands: [schneider, legrand]
//	categories: [выключатель, розетка]
//	layout: {name: qwerty-jcuken, from: "qwe", to: "йцу"}
type DictionaryFile struct {
	Brands     []string    `yaml:"brands"`
	Categories []string    `yaml:"categories"`
	Layout     *LayoutSpec `yaml:"layout"`
}

// DefaultDictionary returns the built-in keywords.
func DefaultDictionary() *Dictionary {
	return NewDictionary(
		[]string{"schneider", "legrand", "abb", "iek", "ekf"},
		[]string{"выключатель", "розетка", "кабель", "лампа"},
	)
}

// NewDictionary normalizes and deduplicates the given keywords.
func NewDictionary(brands, categories []string) *Dictionary {
	return &Dictionary{
		brands:     normalizeKeywords(brands),
		categories: normalizeKeywords(categories),
	}
}

// ReadDictionaryFile parses a YAML dictionary file.
func ReadDictionaryFile(path string) (DictionaryFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DictionaryFile{}, fmt.Errorf("read dictionary file: %w", err)
	}

	var file DictionaryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return DictionaryFile{}, fmt.Errorf("parse dictionary file %s: %w", path, err)
	}
	return file, nil
}

// Brands returns the known brands.
func (d *Dictionary) Brands() []string { return append([]string(nil), d.brands...) }

// Categories returns the known categories.
func (d *Dictionary) Categories() []string { return append([]string(nil), d.categories...) }

// MatchBrands returns every brand contained in text.
func (d *Dictionary) MatchBrands(text string) []string {
	return matchSubstrings(d.brands, text)
}

// MatchCategories returns every category keyword contained in text.
func (d *Dictionary) MatchCategories(text string) []string {
	return matchSubstrings(d.categories, text)
}

// IsBrand reports whether token is exactly a known brand.
func (d *Dictionary) IsBrand(token string) bool {
	token = normalizeText(token)
	for _, brand := range d.brands {
		if brand == token {
			return true
		}
	}
	return false
}

func matchSubstrings(keywords []string, text string) []string {
	text = normalizeText(text)
	if text == "" {
		return nil
	}
	var matched []string
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			matched = append(matched, keyword)
		}
	}
	return matched
}

func normalizeKeywords(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = normalizeText(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
