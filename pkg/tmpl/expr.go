package tmpl

import (
	"fmt"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// 表达式词法
// ═══════════════════════════════════════════════════════════════════════════

type tokKind int

const (
	tokEOF tokKind = iota
	tokName
	tokString
	tokNumber
	tokOp
)

type token struct {
	kind tokKind
	val  string
}

// twoCharOps 需优先匹配的双字符运算符
var twoCharOps = []string{"==", "!=", "<=", ">="}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func tokenizeExpr(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'' || c == '"':
			s, n, err := readString(src[i:])
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, val: s})
			i += n
		case isDigit(c):
			j := i
			for j < len(src) && (isDigit(src[j]) || src[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, val: src[i:j]})
			i = j
		case isNameStart(c):
			j := i
			for j < len(src) && isNamePart(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokName, val: src[i:j]})
			i = j
		default:
			matched := false
			for _, op := range twoCharOps {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, token{kind: tokOp, val: op})
					i += len(op)
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			if !strings.ContainsRune("()[],.|<>-", rune(c)) {
				return nil, fmt.Errorf("unexpected character %q", c)
			}
			toks = append(toks, token{kind: tokOp, val: string(c)})
			i++
		}
	}

	return append(toks, token{kind: tokEOF}), nil
}

// readString 读取带引号的字符串字面量，返回解码后的值和消耗的字节数。
func readString(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case quote:
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("unterminated string")
			}
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
	}

	return "", 0, fmt.Errorf("unterminated string")
}

func isDigit(c byte) bool     { return c >= '0' && c <= '9' }
func isNameStart(c byte) bool { return c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
func isNamePart(c byte) bool  { return isNameStart(c) || isDigit(c) }

// ═══════════════════════════════════════════════════════════════════════════
// 表达式语法树
// ═══════════════════════════════════════════════════════════════════════════

type expr interface {
	eval(c *evalCtx) (any, error)
}

type (
	literalExpr struct{ val any }
	nameExpr    struct{ name string }
	listExpr    struct{ items []expr }
	attrExpr    struct {
		obj  expr
		attr string
		path string
	}
	indexExpr struct {
		obj   expr
		index expr
		path  string
	}
	notExpr   struct{ x expr }
	negExpr   struct{ x expr }
	logicExpr struct {
		op   string
		l, r expr
	}
	compareExpr struct {
		op   string
		l, r expr
	}
	filterExpr struct {
		x    expr
		name string
		args []expr
	}
)

// ═══════════════════════════════════════════════════════════════════════════
// 表达式解析（递归下降，过滤器绑定到一元项，与 Jinja 一致）
// ═══════════════════════════════════════════════════════════════════════════

type exprParser struct {
	toks []token
	pos  int
}

func parseExpr(src string) (expr, error) {
	toks, err := tokenizeExpr(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, fmt.Errorf("empty expression")
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q", t.val)
	}

	return e, nil
}

func (p *exprParser) peek() token { return p.toks[p.pos] }

func (p *exprParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}

	return t
}

func (p *exprParser) isOp(v string) bool {
	t := p.peek()
	return t.kind == tokOp && t.val == v
}

func (p *exprParser) isKeyword(v string) bool {
	t := p.peek()
	return t.kind == tokName && t.val == v
}

func (p *exprParser) expectOp(v string) error {
	if !p.isOp(v) {
		t := p.peek()
		if t.kind == tokEOF {
			return fmt.Errorf("expected %q, got end of expression", v)
		}
		return fmt.Errorf("expected %q, got %q", v, t.val)
	}
	p.next()

	return nil
}

func (p *exprParser) parseOr() (expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &logicExpr{op: "or", l: l, r: r}
	}

	return l, nil
}

func (p *exprParser) parseAnd() (expr, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = &logicExpr{op: "and", l: l, r: r}
	}

	return l, nil
}

func (p *exprParser) parseNot() (expr, error) {
	if p.isKeyword("not") {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notExpr{x: x}, nil
	}

	return p.parseCompare()
}

func (p *exprParser) parseCompare() (expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch t := p.peek(); {
		case t.kind == tokOp && compareOps[t.val]:
			op = t.val
			p.next()
		case p.isKeyword("in"):
			op = "in"
			p.next()
		case p.isKeyword("not") && p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == tokName && p.toks[p.pos+1].val == "in":
			op = "not in"
			p.pos += 2
		default:
			return l, nil
		}
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &compareExpr{op: op, l: l, r: r}
	}
}

func (p *exprParser) parseUnary() (expr, error) {
	x, err := p.parseSigned()
	if err != nil {
		return nil, err
	}
	for p.isOp("|") {
		p.next()
		t := p.next()
		if t.kind != tokName {
			return nil, fmt.Errorf("expected filter name after |")
		}
		f := &filterExpr{x: x, name: t.val}
		if p.isOp("(") {
			args, err := p.parseArgs(")")
			if err != nil {
				return nil, err
			}
			f.args = args
		}
		x = f
	}

	return x, nil
}

// parseSigned 解析带前缀 "-" 的后缀表达式；负号先于过滤器结合。
func (p *exprParser) parseSigned() (expr, error) {
	if !p.isOp("-") {
		return p.parsePostfix()
	}
	p.next()
	x, err := p.parseSigned()
	if err != nil {
		return nil, err
	}

	return &negExpr{x: x}, nil
}

func (p *exprParser) parsePostfix() (expr, error) {
	x, path, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			p.next()
			t := p.next()
			if t.kind != tokName && t.kind != tokNumber {
				return nil, fmt.Errorf("expected attribute name after .")
			}
			path += "." + t.val
			x = &attrExpr{obj: x, attr: t.val, path: path}
		case p.isOp("["):
			p.next()
			idx, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			path += "[...]"
			x = &indexExpr{obj: x, index: idx, path: path}
		default:
			return x, nil
		}
	}
}

func (p *exprParser) parsePrimary() (expr, string, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return &literalExpr{val: t.val}, strconv.Quote(t.val), nil
	case tokNumber:
		if strings.Contains(t.val, ".") {
			f, err := strconv.ParseFloat(t.val, 64)
			if err != nil {
				return nil, "", fmt.Errorf("invalid number %q", t.val)
			}
			return &literalExpr{val: f}, t.val, nil
		}
		n, err := strconv.Atoi(t.val)
		if err != nil {
			return nil, "", fmt.Errorf("invalid number %q", t.val)
		}
		return &literalExpr{val: n}, t.val, nil
	case tokName:
		switch t.val {
		case "true", "True":
			return &literalExpr{val: true}, t.val, nil
		case "false", "False":
			return &literalExpr{val: false}, t.val, nil
		case "none", "None", "nil":
			return &literalExpr{val: nil}, t.val, nil
		case "and", "or", "not", "in":
			return nil, "", fmt.Errorf("unexpected keyword %q", t.val)
		}
		return &nameExpr{name: t.val}, t.val, nil
	case tokOp:
		switch t.val {
		case "(":
			e, err := p.parseOr()
			if err != nil {
				return nil, "", err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, "", err
			}
			return e, "(...)", nil
		case "[":
			p.pos--
			items, err := p.parseArgs("]")
			if err != nil {
				return nil, "", err
			}
			return &listExpr{items: items}, "[...]", nil
		}
		return nil, "", fmt.Errorf("unexpected %q", t.val)
	}

	return nil, "", fmt.Errorf("unexpected end of expression")
}

// parseArgs 解析以当前 "(" 或 "[" 开头、以 closing 结束的逗号分隔列表。
func (p *exprParser) parseArgs(closing string) ([]expr, error) {
	p.next()
	var args []expr
	if p.isOp(closing) {
		p.next()
		return args, nil
	}
	for {
		a, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.isOp(",") {
			p.next()
			continue
		}
		if err := p.expectOp(closing); err != nil {
			return nil, err
		}
		return args, nil
	}
}
