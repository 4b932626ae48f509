package schemafile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mkch/bitwire"
)

// Expr is a length or count in a schema file: an integer, or an arithmetic
// expression over earlier fields of the same struct such as
// "$headerLength * 4 - 20". Supported operators are + - * / and parentheses.
type Expr string

func (e *Expr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = Expr(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expression must be a number or a string: %s", data)
	}
	*e = Expr(n.String())
	return nil
}

func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expression must be a scalar", node.Line)
	}
	*e = Expr(node.Value)
	return nil
}

// Length compiles e. An integer becomes a fixed length, a lone "$name" a
// field reference and anything else a computed length.
func (e Expr) Length() (bitwire.Length, error) {
	node, err := parseExpr(string(e))
	if err != nil {
		return bitwire.Length{}, err
	}
	switch n := node.(type) {
	case number:
		if n < 0 {
			return bitwire.Length{}, fmt.Errorf("negative length %d", n)
		}
		return bitwire.Fixed(int(n)), nil
	case ref:
		return bitwire.Ref(string(n)), nil
	}
	return bitwire.Computed(func(t bitwire.Tree) (int, error) {
		v, err := node.eval(t)
		if err != nil {
			return 0, err
		}
		return int(v), nil
	}), nil
}

type exprNode interface {
	eval(t bitwire.Tree) (int64, error)
}

type number int64

func (n number) eval(bitwire.Tree) (int64, error) { return int64(n), nil }

type ref string

func (r ref) eval(t bitwire.Tree) (int64, error) {
	v, ok := t[string(r)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", bitwire.ErrMissingValue, string(r))
	}
	return bitwire.AsInt(v)
}

type binary struct {
	op   byte
	l, r exprNode
}

func (b *binary) eval(t bitwire.Tree) (int64, error) {
	l, err := b.l.eval(t)
	if err != nil {
		return 0, err
	}
	r, err := b.r.eval(t)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	}
	if r == 0 {
		return 0, fmt.Errorf("%w: division by zero", bitwire.ErrRange)
	}
	return l / r, nil
}

type parser struct {
	src string
	pos int
}

func parseExpr(src string) (exprNode, error) {
	p := &parser{src: src}
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	node, err := p.sum()
	if err != nil {
		return nil, err
	}
	p.space()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return node, nil
}

func (p *parser) errorf(format string, a ...any) error {
	return fmt.Errorf("expression %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, a...))
}

func (p *parser) space() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.space()
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *parser) sum() (exprNode, error) {
	l, err := p.product()
	if err != nil {
		return nil, err
	}
	for op := p.peek(); op == '+' || op == '-'; op = p.peek() {
		p.pos++
		r, err := p.product()
		if err != nil {
			return nil, err
		}
		l = &binary{op, l, r}
	}
	return l, nil
}

func (p *parser) product() (exprNode, error) {
	l, err := p.operand()
	if err != nil {
		return nil, err
	}
	for op := p.peek(); op == '*' || op == '/'; op = p.peek() {
		p.pos++
		r, err := p.operand()
		if err != nil {
			return nil, err
		}
		l = &binary{op, l, r}
	}
	return l, nil
}

func (p *parser) operand() (exprNode, error) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		n, err := p.sum()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("missing )")
		}
		p.pos++
		return n, nil
	case c == '$':
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && isIdent(p.src[p.pos]) {
			p.pos++
		}
		if start == p.pos {
			return nil, p.errorf("missing field name after $")
		}
		return ref(p.src[start:p.pos]), nil
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && isIdent(p.src[p.pos]) {
			p.pos++
		}
		n, err := strconv.ParseInt(p.src[start:p.pos], 0, 64)
		if err != nil {
			return nil, p.errorf("bad number %q", p.src[start:p.pos])
		}
		return number(n), nil
	case c == 0:
		return nil, p.errorf("unexpected end")
	default:
		return nil, p.errorf("unexpected %q", c)
	}
}

func isIdent(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
