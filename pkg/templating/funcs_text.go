package templating

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
)

// slugify converts a string into a lowercase, hyphen-separated identifier
// suitable for anchor ids and URL fragments. Runs of characters that are
// neither letters nor digits collapse into a single hyphen.
func slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(unicode.ToLower(r))
		} else {
			pending = true
		}
	}
	return b.String()
}

// truncate cuts a string to at most n runes. It never adds an ellipsis;
// use excerpt for display text.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// titleCase upper-cases the first letter of every space-separated word.
// The rest of each word is left alone so acronyms survive.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// joinComma renders the elements of any slice as a comma-separated list.
func joinComma(slice any) string {
	if slice == nil {
		return ""
	}
	val := reflect.ValueOf(slice)
	if val.Kind() != reflect.Slice {
		return fmt.Sprint(slice)
	}
	parts := make([]string, val.Len())
	for i := 0; i < val.Len(); i++ {
		parts[i] = fmt.Sprint(val.Index(i).Interface())
	}
	return strings.Join(parts, ", ")
}

// formatDate formats a time using the given layout. The zero time renders
// as an empty string so unset audit fields stay blank on the page.
func formatDate(layout string, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}
