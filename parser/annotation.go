package parser

import (
	"strings"

	"mcdoc/ast"
)

// parseAnnotationText parses the raw text of an Annotation token
// (including the leading `#[` and trailing `]`) into a structured
// Annotation. It never errors on an unrecognized name or malformed
// payload — it degrades to Empty rather than panicking, per the grammar's
// "never panics on unknown annotation names" rule.
func parseAnnotationText(tok ast.Token) ast.Annotation {
	inner := tok.Text
	inner = strings.TrimPrefix(inner, "#")
	inner = strings.TrimPrefix(inner, "[")
	inner = strings.TrimSuffix(inner, "]")

	s := &annScanner{s: inner}
	s.skipSpace()
	name := s.readIdent()
	s.skipSpace()

	switch {
	case s.peek() == '=':
		s.next()
		s.skipSpace()
		value := s.readValueText()
		return ast.Annotation{Name: name, Data: ast.SimpleAnnotation{Value: unquote(value)}, Pos: tok.Pos}
	case s.peek() == '(':
		s.next()
		params := map[string]ast.AnnotationValue{}
		for {
			s.skipSpace()
			if s.peek() == 0 || s.peek() == ')' {
				break
			}
			key := s.readIdent()
			s.skipSpace()
			if s.peek() == '=' {
				s.next()
				s.skipSpace()
			}
			params[key] = s.readAnnotationValue()
			s.skipSpace()
			if s.peek() == ',' {
				s.next()
				continue
			}
			break
		}
		return ast.Annotation{Name: name, Data: ast.ComplexAnnotation{Params: params}, Pos: tok.Pos}
	default:
		return ast.Annotation{Name: name, Data: ast.EmptyAnnotation{}, Pos: tok.Pos}
	}
}

type annScanner struct {
	s   string
	pos int
}

func (a *annScanner) peek() byte {
	if a.pos >= len(a.s) {
		return 0
	}
	return a.s[a.pos]
}

func (a *annScanner) next() byte {
	b := a.peek()
	if a.pos < len(a.s) {
		a.pos++
	}
	return b
}

func (a *annScanner) skipSpace() {
	for a.pos < len(a.s) && (a.s[a.pos] == ' ' || a.s[a.pos] == '\t' || a.s[a.pos] == '\n' || a.s[a.pos] == '\r') {
		a.pos++
	}
}

func (a *annScanner) readIdent() string {
	start := a.pos
	for a.pos < len(a.s) {
		c := a.s[a.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			a.pos++
			continue
		}
		break
	}
	return a.s[start:a.pos]
}

// readValueText reads a top-level value up to (but not past) a ',' at
// depth 0 or the end of input, honoring quoted strings and bracket
// nesting so commas inside them are not treated as separators.
func (a *annScanner) readValueText() string {
	start := a.pos
	depth := 0
	for a.pos < len(a.s) {
		c := a.s[a.pos]
		switch c {
		case '"', '\'':
			a.skipQuoted(c)
			continue
		case '[', '(':
			depth++
		case ']', ')':
			if depth == 0 {
				return a.s[start:a.pos]
			}
			depth--
		case ',':
			if depth == 0 {
				return a.s[start:a.pos]
			}
		}
		a.pos++
	}
	return a.s[start:a.pos]
}

func (a *annScanner) skipQuoted(quote byte) {
	a.pos++ // opening quote
	for a.pos < len(a.s) {
		c := a.s[a.pos]
		if c == '\\' {
			a.pos += 2
			continue
		}
		if c == quote {
			a.pos++
			return
		}
		a.pos++
	}
}

func (a *annScanner) readAnnotationValue() ast.AnnotationValue {
	a.skipSpace()
	switch {
	case a.peek() == '[':
		a.next()
		var list []string
		for {
			a.skipSpace()
			if a.peek() == ']' || a.peek() == 0 {
				break
			}
			list = append(list, unquote(a.readValueText()))
			a.skipSpace()
			if a.peek() == ',' {
				a.next()
				continue
			}
			break
		}
		if a.peek() == ']' {
			a.next()
		}
		return ast.AnnotationValue{List: list, IsList: true}
	default:
		text := a.readValueText()
		trimmed := strings.TrimSpace(text)
		if trimmed == "true" || trimmed == "false" {
			return ast.AnnotationValue{Bool: trimmed == "true", IsBool: true}
		}
		return ast.AnnotationValue{Str: unquote(trimmed)}
	}
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
