package templating

import "fmt"

// repeat returns a slice of integers from 0 to count-1, capped by
// MaxRepeatCount, for use with range.
func (tm *TemplateManager) repeat(count int) []int {
	if count < 0 {
		count = 0
	}
	if count > tm.config.MaxRepeatCount {
		count = tm.config.MaxRepeatCount
	}
	s := make([]int, count)
	for i := 0; i < count; i++ {
		s[i] = i
	}
	return s
}

// list returns a slice containing all the arguments passed to it.
func list(args ...any) []any {
	return args
}

// dict builds a map from alternating key/value arguments, so templates can
// pass structured data to partials.
func dict(args ...any) (map[string]any, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("dict requires an even number of arguments, got %d", len(args))
	}
	m := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict keys must be strings, got %T", args[i])
		}
		m[key] = args[i+1]
	}
	return m, nil
}

// seq returns the integers from start through end inclusive. The length of
// the result is capped by MaxRepeatCount.
func (tm *TemplateManager) seq(start, end int) []int {
	if end < start {
		return []int{}
	}
	n := end - start + 1
	if n > tm.config.MaxRepeatCount {
		n = tm.config.MaxRepeatCount
	}
	s := make([]int, n)
	for i := 0; i < n; i++ {
		s[i] = start + i
	}
	return s
}
