package cattypes

import (
	"strconv"
	"strings"

	"github.com/gear6io/lattice/pkg/errors"
)

// FilterTerm is one equality constraint of a partition filter
type FilterTerm struct {
	Column string
	Value  string
}

// EqualsFilter renders a single-term filter expression for the given
// column and literal value. Single quotes inside the value are escaped
// by doubling, so the result always parses back via ParseFilter.
func EqualsFilter(column, value string) string {
	return column + " = '" + strings.ReplaceAll(value, "'", "''") + "'"
}

// ParseFilter parses a partition filter expression into its terms.
//
// The filter language is deliberately small: equality comparisons
// between a partition column and a single-quoted string literal, joined
// with AND. An empty expression parses to no terms and matches every
// partition.
//
//	dt = '2024-05-01-10' AND region = 'emea'
func ParseFilter(filter string) ([]FilterTerm, error) {
	if strings.TrimSpace(filter) == "" {
		return nil, nil
	}

	p := &filterParser{input: filter}
	var terms []FilterTerm

	for {
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)

		p.skipSpaces()
		if p.done() {
			return terms, nil
		}
		if !p.consumeKeyword("AND") {
			return nil, p.errorf("expected AND between filter terms")
		}
	}
}

// MatchesFilter reports whether a partition value map satisfies every
// term of a parsed filter
func MatchesFilter(values map[string]string, terms []FilterTerm) bool {
	for _, term := range terms {
		if values[term.Column] != term.Value {
			return false
		}
	}
	return true
}

// filterParser is a minimal scanner over a filter expression
type filterParser struct {
	input string
	pos   int
}

func (p *filterParser) parseTerm() (FilterTerm, error) {
	p.skipSpaces()

	column := p.scanIdentifier()
	if column == "" {
		return FilterTerm{}, p.errorf("expected column name")
	}

	p.skipSpaces()
	if !p.consumeByte('=') {
		return FilterTerm{}, p.errorf("expected '=' after column name")
	}

	p.skipSpaces()
	value, err := p.scanStringLiteral()
	if err != nil {
		return FilterTerm{}, err
	}

	return FilterTerm{Column: column, Value: value}, nil
}

func (p *filterParser) scanIdentifier() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

// scanStringLiteral reads a single-quoted literal, decoding doubled
// quotes into literal quotes
func (p *filterParser) scanStringLiteral() (string, error) {
	if !p.consumeByte('\'') {
		return "", p.errorf("expected quoted value")
	}

	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c != '\'' {
			sb.WriteByte(c)
			p.pos++
			continue
		}

		// A doubled quote is an escaped quote, a lone one closes the literal
		if p.pos+1 < len(p.input) && p.input[p.pos+1] == '\'' {
			sb.WriteByte('\'')
			p.pos += 2
			continue
		}
		p.pos++
		return sb.String(), nil
	}

	return "", p.errorf("unterminated quoted value")
}

func (p *filterParser) consumeKeyword(keyword string) bool {
	end := p.pos + len(keyword)
	if end > len(p.input) {
		return false
	}
	if !strings.EqualFold(p.input[p.pos:end], keyword) {
		return false
	}
	// The keyword must end at a word boundary
	if end < len(p.input) {
		c := p.input[end]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return false
		}
	}
	p.pos = end
	return true
}

func (p *filterParser) consumeByte(b byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == b {
		p.pos++
		return true
	}
	return false
}

func (p *filterParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *filterParser) done() bool {
	return p.pos >= len(p.input)
}

func (p *filterParser) errorf(msg string) error {
	return errors.New(ErrInvalidFilter, msg, nil).
		AddContext("filter", p.input).
		AddContext("position", strconv.Itoa(p.pos))
}
