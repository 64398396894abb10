// Package extract mines tour (name, price) pairs out of free-form assistant
// text so a client can offer quick picks before structured data arrives.
package extract

import (
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// price is an amount followed by a Vietnamese dong marker. The amount is a
// plain digit run or digits grouped by thousands with one separator, e.g.
// 4500000, 4,500,000, 4.500.000 or 4 500 000.
var price = regexp.MustCompile(
	`(\d{1,3}(?:,\d{3})+|\d{1,3}(?:\.\d{3})+|\d{1,3}(?: \d{3})+|\d+)` +
		`\s*(?i:vnđ|vnd|đồng|đ|₫)`,
)

// family is a set of patterns tried together. Group 1 of each pattern is the
// name and group 2 the rest of the item, where the price is looked up.
type family struct {
	name     string
	patterns []*regexp.Regexp
	clean    func(string) string
}

var families = []family{
	{
		name: "bold",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\*\*([^*\n]+?)\*\*([^\n*]*)`),
		},
	},
	{
		name: "numbered",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^[ \t]*\d{1,2}[.)][ \t]+([^\n*:]+?)[ \t]*[-–:]([^\n]*)`),
		},
	},
	{
		name: "html",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`<(?:strong|b)>([^<\n]+?)</(?:strong|b)>([^\n<]*)`),
			regexp.MustCompile(`&lt;(?:strong|b)&gt;([^\n]+?)&lt;/(?:strong|b)&gt;([^\n&]*)`),
		},
		clean: html.UnescapeString,
	},
}

type match struct {
	pos   int
	name  string
	price int64
}

// Selections returns the selections found by the first pattern family that
// yields at least one entry. Results keep text order and are indexed from 0.
// Entries without a price that parses as an integer are skipped.
func Selections(text string) []model.TourSelection {
	if text == "" {
		return nil
	}
	for _, f := range families {
		if out := f.find(text); len(out) > 0 {
			return out
		}
	}
	return nil
}

// Family reports which pattern family Selections would use for text, or ""
// when nothing matches.
func Family(text string) string {
	for _, f := range families {
		if len(f.find(text)) > 0 {
			return f.name
		}
	}
	return ""
}

func (f family) find(text string) []model.TourSelection {
	var matches []match
	for _, re := range f.patterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			name := text[loc[2]:loc[3]]
			if f.clean != nil {
				name = f.clean(name)
			}
			name = cleanName(name)
			if name == "" {
				continue
			}
			p, ok := firstPrice(text[loc[4]:loc[5]])
			if !ok {
				continue
			}
			matches = append(matches, match{pos: loc[0], name: name, price: p})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	out := make([]model.TourSelection, len(matches))
	for i, m := range matches {
		out[i] = model.TourSelection{Name: m.name, Price: m.price, Index: i}
	}
	return out
}

// firstPrice returns the first standalone price in s. An amount glued to a
// letter, digit or separator on its left ("3N2Đ", the "50" of "4,500,000.50")
// or a marker running into a word ("2 đêm") is not a price.
func firstPrice(s string) (int64, bool) {
	for _, loc := range price.FindAllStringSubmatchIndex(s, -1) {
		if before, _ := utf8.DecodeLastRuneInString(s[:loc[0]]); loc[0] > 0 &&
			(unicode.IsLetter(before) || unicode.IsDigit(before) || before == '.' || before == ',') {
			continue
		}
		if after, _ := utf8.DecodeRuneInString(s[loc[1]:]); loc[1] < len(s) && unicode.IsLetter(after) {
			continue
		}
		if v, ok := ParsePrice(s[loc[2]:loc[3]]); ok {
			return v, true
		}
	}
	return 0, false
}

// ParsePrice strips thousands separators and parses the remainder.
func ParsePrice(s string) (int64, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func cleanName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " -–:")
}
