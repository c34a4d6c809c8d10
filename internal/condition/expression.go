// Package condition compiles and evaluates the small boolean language used by
// conditional injection rules, e.g.
//
//	answer contains "California" AND score >= 10
//
// Expressions are compiled once when the questionnaire is loaded; evaluation
// never parses.
package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expr is a compiled boolean expression.
type Expr interface {
	exprNode()
}

// LogicalExpr joins two expressions with AND / OR.
type LogicalExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// NotExpr negates an expression.
type NotExpr struct {
	Expr Expr
}

// ComparisonExpr compares two operands.
type ComparisonExpr struct {
	Left  Operand
	Op    Operator
	Right Operand
}

func (*LogicalExpr) exprNode()    {}
func (*NotExpr) exprNode()        {}
func (*ComparisonExpr) exprNode() {}

// Operand is a literal or a dotted field path.
type Operand interface {
	operandNode()
}

// Literal is a constant string, float64 or bool.
type Literal struct {
	Value interface{}
}

// Field is a path such as ["answers", "7"].
type Field struct {
	Path []string
}

func (*Literal) operandNode() {}
func (*Field) operandNode()   {}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokBool
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	ch := l.src[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ch == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case strings.ContainsRune("=!<>", rune(ch)):
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
		}
		return token{kind: tokOp, text: l.src[start:l.pos], pos: start}, nil
	case ch == '"' || ch == '\'':
		return l.quoted(ch)
	case isDigit(ch) || (ch == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		l.pos++
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil
	case unicode.IsLetter(rune(ch)) || ch == '_':
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.pos++
		}
		word := l.src[start:l.pos]
		if lw := strings.ToLower(word); lw == "true" || lw == "false" {
			return token{kind: tokBool, text: lw, pos: start}, nil
		}
		return token{kind: tokIdent, text: word, pos: start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at position %d", ch, start)
}

func (l *lexer) quoted(quote byte) (token, error) {
	start := l.pos
	var b strings.Builder
	l.pos++
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < len(l.src):
			b.WriteByte(l.src[l.pos+1])
			l.pos += 2
		case ch == quote:
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		default:
			b.WriteByte(ch)
			l.pos++
		}
	}
	return token{}, fmt.Errorf("unterminated string starting at position %d", start)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentChar(ch byte) bool {
	return isDigit(ch) || ch == '_' || ch == '.' || unicode.IsLetter(rune(ch))
}

// parser is a recursive-descent parser over a pre-lexed token slice.
//
//	or      = and { "OR" and }
//	and     = unary { "AND" unary }
//	unary   = "NOT" unary | "(" or ")" | compare
//	compare = operand op operand
type parser struct {
	toks []token
	i    int
}

// Parse compiles src into an Expr.
func Parse(src string) (Expr, error) {
	lx := &lexer{src: src}
	var toks []token
	for {
		t, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	p := &parser{toks: toks}
	e, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	return e, nil
}

// MustParse is Parse for expressions known at compile time.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(fmt.Sprintf("condition: %q: %v", src, err))
	}
	return e
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (p *parser) or() (Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		p.advance()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) and() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		p.advance()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if p.keyword("NOT") {
		p.advance()
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.advance()
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if t := p.advance(); t.kind != tokRParen {
			return nil, fmt.Errorf("expected \")\" at position %d, got %q", t.pos, t.text)
		}
		return inner, nil
	}
	return p.compare()
}

func (p *parser) compare() (Expr, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	t := p.advance()
	var op Operator
	switch {
	case t.kind == tokOp:
		op = Operator(t.text)
		if !op.valid() {
			return nil, fmt.Errorf("unknown operator %q at position %d", t.text, t.pos)
		}
	case t.kind == tokIdent && strings.EqualFold(t.text, string(OpContains)):
		op = OpContains
	case t.kind == tokIdent && strings.EqualFold(t.text, string(OpMatches)):
		op = OpMatches
	default:
		return nil, fmt.Errorf("expected comparison operator at position %d, got %q", t.pos, t.text)
	}
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	return &ComparisonExpr{Left: left, Op: op, Right: right}, nil
}

func (p *parser) operand() (Operand, error) {
	t := p.advance()
	switch t.kind {
	case tokString:
		return &Literal{Value: t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", t.text, t.pos)
		}
		return &Literal{Value: f}, nil
	case tokBool:
		return &Literal{Value: t.text == "true"}, nil
	case tokIdent:
		return &Field{Path: strings.Split(t.text, ".")}, nil
	}
	return nil, fmt.Errorf("expected operand at position %d, got %q", t.pos, t.text)
}
