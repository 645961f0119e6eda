package variants

import (
	"fmt"
	"unicode"
)

const (
	qwertyKeys = "qwertyuiop[]asdfghjkl;'zxcvbnm,.`"
	jcukenKeys = "йцукенгшщзхъфывапролджэячсмитьбюё"
)

// Layout maps characters typed on one keyboard layout to the characters the
// same keys produce on another.
type Layout struct {
	name    string
	mapping map[rune]rune
}

// LayoutSpec describes a layout as two equally long key strings.
type LayoutSpec struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// DefaultLayoutSpec is Latin QWERTY typed while Russian ЙЦУКЕН was intended.
func DefaultLayoutSpec() LayoutSpec {
	return LayoutSpec{Name: "qwerty-jcuken", From: qwertyKeys, To: jcukenKeys}
}

// NewLayout builds a layout from a spec. Both strings are compared rune by
// rune and must have the same length without repeated source keys.
func NewLayout(spec LayoutSpec) (*Layout, error) {
	from := []rune(spec.From)
	to := []rune(spec.To)
	if len(from) == 0 || len(from) != len(to) {
		return nil, fmt.Errorf("layout %q: from and to must be non-empty and equally long (%d vs %d)", spec.Name, len(from), len(to))
	}

	mapping := make(map[rune]rune, len(from))
	for i, r := range from {
		key := unicode.ToLower(r)
		if _, dup := mapping[key]; dup {
			return nil, fmt.Errorf("layout %q: key %q mapped twice", spec.Name, r)
		}
		mapping[key] = unicode.ToLower(to[i])
	}
	return &Layout{name: spec.Name, mapping: mapping}, nil
}

// MustDefaultLayout returns the built-in layout.
func MustDefaultLayout() *Layout {
	layout, err := NewLayout(DefaultLayoutSpec())
	if err != nil {
		panic(err)
	}
	return layout
}

// Name identifies the layout.
func (l *Layout) Name() string { return l.name }

// Inverse returns the layout for the opposite typing mistake.
func (l *Layout) Inverse() *Layout {
	inverse := make(map[rune]rune, len(l.mapping))
	for from, to := range l.mapping {
		inverse[to] = from
	}
	return &Layout{name: l.name + "-inverse", mapping: inverse}
}

// Convert rewrites text key by key. It reports false unless the text has at
// least one letter and every letter belongs to the source layout. Mapped
// punctuation is converted too, except between two digits, so that "2.5"
// survives inside an otherwise mistyped query.
func (l *Layout) Convert(text string) (string, bool) {
	runes := []rune(text)
	out := make([]rune, len(runes))
	letters := 0

	for i, r := range runes {
		lower := unicode.ToLower(r)
		target, mapped := l.mapping[lower]

		if unicode.IsLetter(r) {
			if !mapped {
				return "", false
			}
			letters++
			out[i] = target
			continue
		}

		if mapped && !betweenDigits(runes, i) {
			out[i] = target
			continue
		}
		out[i] = r
	}

	if letters == 0 {
		return "", false
	}
	return string(out), true
}

func betweenDigits(runes []rune, i int) bool {
	return i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
}
