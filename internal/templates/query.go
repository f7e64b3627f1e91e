package templates

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultListLimit   = 100
	DefaultSearchLimit = 50
	minQueryLen        = 2
)

// Paginate returns at most limit elements starting at skip. Both must be
// non-negative; limit has no upper bound. The result aliases seq.
func Paginate(seq []Template, skip, limit int) []Template {
	if skip > len(seq) {
		skip = len(seq)
	}
	end := len(seq)
	if limit < end-skip {
		end = skip + limit
	}
	return seq[skip:end]
}

// FilterByCategory keeps exact, case-sensitive category matches. A nil
// category means no filter.
func FilterByCategory(seq []Template, category *string) []Template {
	if category == nil {
		return seq
	}
	out := make([]Template, 0, len(seq))
	for _, t := range seq {
		if t.Category == *category {
			out = append(out, t)
		}
	}
	return out
}

// Search returns templates whose name, description or category contains the
// trimmed query, ignoring case.
func Search(seq []Template, query string) ([]Template, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < minQueryLen {
		return nil, errorf(KindInvalidQuery, "search query must be at least %d characters", minQueryLen)
	}
	q = strings.ToLower(q)

	out := make([]Template, 0)
	for _, t := range seq {
		if strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Description), q) ||
			strings.Contains(strings.ToLower(t.Category), q) {
			out = append(out, t)
		}
	}
	return out, nil
}
