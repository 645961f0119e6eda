// Package variants turns a raw query into the interpretations the search
// adapters match against: the literal text, a keyboard-layout correction,
// product codes and brand hints.
package variants

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"vdestor_backend/internal/search/domain"

	"github.com/kljensen/snowball"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const maxCodeLen = 30

var codePattern = regexp.MustCompile(`^[A-Za-z0-9\-./_]+$`)

// FieldBoost is the weight of one indexed field in the multi-field match.
type FieldBoost struct {
	Field string
	Boost float64
}

// String renders the boost in query DSL form, e.g. "name^5".
func (b FieldBoost) String() string {
	return fmt.Sprintf("%s^%g", b.Field, b.Boost)
}

var fieldBoosts = []FieldBoost{
	{Field: "external_id", Boost: 10},
	{Field: "sku", Boost: 8},
	{Field: "name", Boost: 5},
	{Field: "brand_name", Boost: 3},
	{Field: "series_name", Boost: 2},
	{Field: "description", Boost: 1},
}

// FieldBoosts returns the field weights, highest first.
func FieldBoosts() []FieldBoost {
	return append([]FieldBoost(nil), fieldBoosts...)
}

// Fuzziness returns the allowed edit distance for text, scaled by its
// shortest term: up to 2 runes exact, up to 5 one edit, longer two.
func Fuzziness(text string) int {
	shortest := 0
	for _, term := range strings.Fields(text) {
		n := utf8.RuneCountInString(term)
		if shortest == 0 || n < shortest {
			shortest = n
		}
	}
	switch {
	case shortest <= 2:
		return 0
	case shortest <= 5:
		return 1
	default:
		return 2
	}
}

// IsCode reports whether text looks like an article or catalog code: ASCII
// letters, digits and separators, at most 30 characters. Letters-only words
// and words joined by "." or "/" are also what Russian typed on a Latin
// layout looks like, so a code needs a digit, "-" or "_".
func IsCode(text string) bool {
	if text == "" || len(text) > maxCodeLen {
		return false
	}
	if !codePattern.MatchString(text) {
		return false
	}
	return strings.ContainsAny(text, "0123456789-_")
}

// Plan is the set of interpretations for one query. Variants are ordered
// with the literal first.
type Plan struct {
	Query      string
	Variants   []domain.QueryVariant
	Brands     []string
	Categories []string
	// Stems are Russian word stems of the text variants; the relational
	// fallback uses them as extra substring patterns.
	Stems []string
}

// Empty reports a match-all query.
func (p Plan) Empty() bool { return p.Query == "" }

// Texts returns the variants matched as free text.
func (p Plan) Texts() []string {
	return p.textsOf(domain.VariantLiteral, domain.VariantLayoutCorrected)
}

// Codes returns the variants matched as codes.
func (p Plan) Codes() []string {
	return p.textsOf(domain.VariantCode)
}

// BrandHints returns the brand variants.
func (p Plan) BrandHints() []string {
	return p.textsOf(domain.VariantBrand)
}

func (p Plan) textsOf(kinds ...domain.VariantKind) []string {
	var out []string
	for _, v := range p.Variants {
		for _, kind := range kinds {
			if v.Kind == kind {
				out = append(out, v.Text)
				break
			}
		}
	}
	return out
}

// Generator builds Plans. It is safe for concurrent use.
type Generator struct {
	layout  *Layout
	inverse *Layout
	dict    *Dictionary
}

// NewGenerator creates a generator from a layout table and a dictionary.
func NewGenerator(layout *Layout, dict *Dictionary) *Generator {
	if layout == nil {
		layout = MustDefaultLayout()
	}
	if dict == nil {
		dict = DefaultDictionary()
	}
	return &Generator{layout: layout, inverse: layout.Inverse(), dict: dict}
}

// Load builds a generator from a dictionary file, or from the built-in
// tables when path is empty.
func Load(path string) (*Generator, error) {
	if strings.TrimSpace(path) == "" {
		return NewGenerator(nil, nil), nil
	}

	file, err := ReadDictionaryFile(path)
	if err != nil {
		return nil, err
	}

	defaults := DefaultDictionary()
	brands, categories := file.Brands, file.Categories
	if len(brands) == 0 {
		brands = defaults.Brands()
	}
	if len(categories) == 0 {
		categories = defaults.Categories()
	}

	layout := MustDefaultLayout()
	if file.Layout != nil {
		if layout, err = NewLayout(*file.Layout); err != nil {
			return nil, err
		}
	}
	return NewGenerator(layout, NewDictionary(brands, categories)), nil
}

// Dictionary exposes the generator's keywords.
func (g *Generator) Dictionary() *Dictionary { return g.dict }

// Generate interprets raw. An empty query yields an empty Plan.
func (g *Generator) Generate(raw string) Plan {
	literal := normalizeText(raw)
	plan := Plan{Query: literal}
	if literal == "" {
		return plan
	}

	add := newVariantSet(&plan)
	add(literal, domain.VariantLiteral)

	plan.Brands = g.dict.MatchBrands(literal)
	plan.Categories = g.dict.MatchCategories(literal)

	isCode := IsCode(literal)
	if !isCode && !g.containsBrandToken(literal) {
		if corrected, ok := g.layout.Convert(literal); ok && corrected != literal {
			add(corrected, domain.VariantLayoutCorrected)
			plan.Categories = appendUnique(plan.Categories, g.dict.MatchCategories(corrected)...)
		} else if corrected, ok := g.inverse.Convert(literal); ok && corrected != literal {
			// Only worth a variant when it reveals a brand typed on the
			// wrong layout.
			if found := g.dict.MatchBrands(corrected); len(found) > 0 {
				add(corrected, domain.VariantLayoutCorrected)
				plan.Brands = appendUnique(plan.Brands, found...)
			}
		}
	}

	if isCode {
		add(literal, domain.VariantCode)
	}
	if tokens := strings.Fields(literal); len(tokens) > 1 {
		for _, token := range tokens {
			if IsCode(token) {
				add(token, domain.VariantCode)
			}
		}
	}

	for _, brand := range plan.Brands {
		add(brand, domain.VariantBrand)
	}

	plan.Stems = stems(plan.Texts())
	return plan
}

func (g *Generator) containsBrandToken(text string) bool {
	for _, token := range strings.Fields(text) {
		if g.dict.IsBrand(token) {
			return true
		}
	}
	return false
}

func newVariantSet(plan *Plan) func(text string, kind domain.VariantKind) {
	seen := make(map[domain.QueryVariant]struct{})
	return func(text string, kind domain.VariantKind) {
		v := domain.QueryVariant{Text: text, Kind: kind}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		plan.Variants = append(plan.Variants, v)
	}
}

func stems(texts []string) []string {
	var out []string
	for _, text := range texts {
		words := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
		for _, word := range words {
			if utf8.RuneCountInString(word) < 4 || !isCyrillic(word) {
				continue
			}
			stem, err := snowball.Stem(word, "russian", true)
			if err != nil || stem == word || utf8.RuneCountInString(stem) < 3 {
				continue
			}
			out = appendUnique(out, stem)
		}
	}
	return out
}

func isCyrillic(word string) bool {
	for _, r := range word {
		if !unicode.Is(unicode.Cyrillic, r) {
			return false
		}
	}
	return true
}

func appendUnique(dst []string, values ...string) []string {
	for _, value := range values {
		found := false
		for _, existing := range dst {
			if existing == value {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, value)
		}
	}
	return dst
}

// normalizeText applies NFC, lower-cases and collapses whitespace.
func normalizeText(text string) string {
	text = norm.NFC.String(text)
	text = cases.Lower(language.Und).String(text)
	return strings.Join(strings.Fields(text), " ")
}
