package matching

import (
	"fmt"
	"regexp"
	"strings"

	"club-reconciliation-backend/internal/models"
)

type debitorPattern struct {
	debitor models.Debitor
	re      *regexp.Regexp
}

// DebitorMatcher recognises non-member payers by the literal tokens stored
// for them. Patterns are compiled once from a snapshot of the debitors;
// later changes to the stored tokens are not seen.
type DebitorMatcher struct {
	patterns []debitorPattern
}

// NewDebitorMatcher compiles one pattern per debitor, keeping the order of
// debitors. Debitors without tokens are ignored.
func NewDebitorMatcher(debitors []models.Debitor) (*DebitorMatcher, error) {
	m := &DebitorMatcher{}
	for _, d := range debitors {
		expr := debitorExpr(d.Token1, d.Token2)
		if expr == "" {
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling tokens of debitor %s: %w", d.ID, err)
		}
		m.patterns = append(m.patterns, debitorPattern{debitor: d, re: re})
	}
	return m, nil
}

func debitorExpr(tokens ...string) string {
	var parts []string
	for _, tok := range tokens {
		tok = stripSpace(tok)
		if tok == "" {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(tok))
	}
	if len(parts) == 0 {
		return ""
	}
	return `(?i)` + strings.Join(parts, `\s*`)
}

// stripSpace removes all whitespace; references wrap tokens across the
// fixed-width reference columns at arbitrary points.
func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// Match returns the first debitor whose tokens appear in reference.
func (m *DebitorMatcher) Match(reference string) (*models.Debitor, bool) {
	if m == nil {
		return nil, false
	}
	text := stripSpace(reference)
	if text == "" {
		return nil, false
	}
	for i := range m.patterns {
		if m.patterns[i].re.MatchString(text) {
			d := m.patterns[i].debitor
			return &d, true
		}
	}
	return nil, false
}

// Len is the number of usable debitor patterns.
func (m *DebitorMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}
