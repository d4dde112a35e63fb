package builtin

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Evaluator for arithmetic expressions. Grammar, lowest precedence first:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "//" | "%") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ ("**" | "^") unary ]
//	primary = number | name | name "(" [ expr { "," expr } ] ")" | "(" expr ")"
//
// Only whitelisted names are resolvable; nothing else is reachable.

var errDivisionByZero = errors.New("division by zero")

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

type mathFunc struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	fn               func(args []float64) (float64, error)
}

func oneArg(f func(float64) float64) mathFunc {
	return mathFunc{1, 1, func(a []float64) (float64, error) { return f(a[0]), nil }}
}

var functions = map[string]mathFunc{
	"abs": oneArg(math.Abs),
	"sin": oneArg(math.Sin),
	"cos": oneArg(math.Cos),
	"tan": oneArg(math.Tan),
	"exp": oneArg(math.Exp),
	"sqrt": {1, 1, func(a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, errors.New("math domain error: sqrt of negative number")
		}
		return math.Sqrt(a[0]), nil
	}},
	"log": {1, 2, func(a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, errors.New("math domain error: log of non-positive number")
		}
		if len(a) == 2 {
			if a[1] <= 0 || a[1] == 1 {
				return 0, errors.New("math domain error: invalid log base")
			}
			switch a[1] {
			case 2:
				return math.Log2(a[0]), nil
			case 10:
				return math.Log10(a[0]), nil
			}
			return math.Log(a[0]) / math.Log(a[1]), nil
		}
		return math.Log(a[0]), nil
	}},
	"pow": {2, 2, func(a []float64) (float64, error) { return power(a[0], a[1]) }},
	"round": {1, 2, func(a []float64) (float64, error) {
		if len(a) == 1 {
			return math.RoundToEven(a[0]), nil
		}
		p := math.Pow(10, math.Trunc(a[1]))
		return math.RoundToEven(a[0]*p) / p, nil
	}},
	"min": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"max": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
	"sum": {0, -1, func(a []float64) (float64, error) {
		var s float64
		for _, v := range a {
			s += v
		}
		return s, nil
	}},
}

func power(base, exp float64) (float64, error) {
	if base == 0 && exp < 0 {
		return 0, errDivisionByZero
	}
	r := math.Pow(base, exp)
	if math.IsNaN(r) {
		return 0, errors.New("math domain error: fractional power of negative number")
	}
	return r, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokName
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func tokenize(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c) || c == '.':
			start := i
			for i < len(src) && (unicode.IsDigit(rune(src[i])) || src[i] == '.' || src[i] == '_') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && unicode.IsDigit(rune(src[j])) {
					i = j
					for i < len(src) && unicode.IsDigit(rune(src[i])) {
						i++
					}
				}
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(src[start:i], "_", ""), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", src[start:i], start)
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: v, pos: start})
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(src) && (unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i])) || src[i] == '_') {
				i++
			}
			toks = append(toks, token{kind: tokName, text: src[start:i], pos: start})
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case strings.HasPrefix(src[i:], "**"), strings.HasPrefix(src[i:], "//"):
			toks = append(toks, token{kind: tokOp, text: src[i : i+2], pos: i})
			i += 2
		case strings.ContainsRune("+-*/%^", c):
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

type parser struct {
	toks  []token
	pos   int
	depth int
}

const maxDepth = 64

// evaluate parses and evaluates an arithmetic expression.
func evaluate(src string) (float64, error) {
	if strings.TrimSpace(src) == "" {
		return 0, errors.New("empty expression")
	}
	toks, err := tokenize(src)
	if err != nil {
		return 0, err
	}
	p := &parser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	if math.IsInf(v, 0) {
		return 0, errors.New("result overflows")
	}
	return v, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, o := range ops {
		if t.text == o {
			return true
		}
	}
	return false
}

func (p *parser) expr() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return 0, errors.New("expression nested too deeply")
	}

	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.isOp("+", "-") {
		op := p.next().text
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.isOp("*", "/", "//", "%") {
		op := p.next().text
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, errDivisionByZero
			}
			left /= right
		case "//":
			if right == 0 {
				return 0, errDivisionByZero
			}
			left = math.Floor(left / right)
		case "%":
			if right == 0 {
				return 0, errDivisionByZero
			}
			// Result takes the sign of the divisor.
			m := math.Mod(left, right)
			if m != 0 && (m < 0) != (right < 0) {
				m += right
			}
			left = m
		}
	}
	return left, nil
}

func (p *parser) unary() (float64, error) {
	if p.isOp("+", "-") {
		op := p.next().text
		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxDepth {
			return 0, errors.New("expression nested too deeply")
		}
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.power()
}

func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if p.isOp("**", "^") {
		p.next()
		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxDepth {
			return 0, errors.New("expression nested too deeply")
		}
		exp, err := p.unary()
		if err != nil {
			return 0, err
		}
		return power(base, exp)
	}
	return base, nil
}

func (p *parser) primary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.next().kind != tokRParen {
			return 0, fmt.Errorf("missing closing parenthesis for position %d", t.pos)
		}
		return v, nil
	case tokName:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		if v, ok := constants[t.text]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("unknown name %q", t.text)
	case tokEOF:
		return 0, errors.New("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
}

func (p *parser) call(name token) (float64, error) {
	f, ok := functions[name.text]
	if !ok {
		return 0, fmt.Errorf("unknown function %q", name.text)
	}
	p.next() // (
	var args []float64
	if p.peek().kind != tokRParen {
		for {
			v, err := p.expr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if p.next().kind != tokRParen {
		return 0, fmt.Errorf("missing closing parenthesis in call to %s", name.text)
	}
	if len(args) < f.minArgs || (f.maxArgs >= 0 && len(args) > f.maxArgs) {
		return 0, fmt.Errorf("%s: wrong number of arguments (%d)", name.text, len(args))
	}
	return f.fn(args)
}

// formatNumber renders integral values without a fractional part.
func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
