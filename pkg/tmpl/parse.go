package tmpl

import (
	"fmt"
	"strings"
)

// node 模板中间表示节点
type node interface{}

type (
	textNode   struct{ text string }
	outputNode struct {
		x    expr
		line int
	}
	ifNode struct {
		branches []ifBranch
		elseBody []node
	}
	ifBranch struct {
		cond expr
		body []node
		line int
	}
	forNode struct {
		name     string
		seq      expr
		body     []node
		elseBody []node
		line     int
	}
	includeNode struct {
		path expr
		line int
	}
)

type parser struct {
	name  string
	items []item
	pos   int
}

func parse(name string, items []item) ([]node, error) {
	p := &parser{name: name, items: items}
	nodes, stop, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if stop != nil {
		return nil, p.syntaxErr(stop.line, "unexpected %q", keyword(stop.val))
	}

	return nodes, nil
}

func (p *parser) syntaxErr(line int, format string, args ...any) error {
	return &SyntaxError{Template: p.name, Line: line, Message: fmt.Sprintf(format, args...)}
}

// keyword 返回块标签的首个单词
func keyword(body string) string {
	if i := strings.IndexAny(body, " \t\r\n"); i >= 0 {
		return body[:i]
	}

	return body
}

// parseList 解析节点直到遇到闭合类块标签（elif/else/endif/endfor）或输入结束。
// 遇到闭合类标签时将其返回，由调用方判断是否合法。
func (p *parser) parseList() ([]node, *item, error) {
	var nodes []node
	for p.pos < len(p.items) {
		it := p.items[p.pos]
		p.pos++

		switch it.typ {
		case itemText:
			if it.val != "" {
				nodes = append(nodes, &textNode{text: it.val})
			}
		case itemVariable:
			x, err := parseExpr(it.val)
			if err != nil {
				return nil, nil, p.syntaxErr(it.line, "%v", err)
			}
			nodes = append(nodes, &outputNode{x: x, line: it.line})
		case itemBlock:
			switch keyword(it.val) {
			case "elif", "else", "endif", "endfor":
				return nodes, &it, nil
			case "if":
				n, err := p.parseIf(it)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "for":
				n, err := p.parseFor(it)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "include":
				x, err := parseExpr(strings.TrimSpace(strings.TrimPrefix(it.val, "include")))
				if err != nil {
					return nil, nil, p.syntaxErr(it.line, "include: %v", err)
				}
				nodes = append(nodes, &includeNode{path: x, line: it.line})
			case "":
				return nil, nil, p.syntaxErr(it.line, "empty block tag")
			default:
				return nil, nil, p.syntaxErr(it.line, "unknown tag %q", keyword(it.val))
			}
		}
	}

	return nodes, nil, nil
}

func (p *parser) parseIf(open item) (node, error) {
	n := &ifNode{}
	cur := open
	condSrc := strings.TrimSpace(strings.TrimPrefix(open.val, "if"))

	for {
		cond, err := parseExpr(condSrc)
		if err != nil {
			return nil, p.syntaxErr(cur.line, "%s: %v", keyword(cur.val), err)
		}
		body, stop, err := p.parseList()
		if err != nil {
			return nil, err
		}
		n.branches = append(n.branches, ifBranch{cond: cond, body: body, line: cur.line})
		if stop == nil {
			return nil, p.syntaxErr(open.line, "unclosed if, missing endif")
		}

		switch keyword(stop.val) {
		case "elif":
			cur = *stop
			condSrc = strings.TrimSpace(strings.TrimPrefix(stop.val, "elif"))
			continue
		case "else":
			elseBody, end, err := p.parseList()
			if err != nil {
				return nil, err
			}
			if end == nil || keyword(end.val) != "endif" {
				return nil, p.syntaxErr(stop.line, "else without endif")
			}
			n.elseBody = elseBody
			return n, nil
		case "endif":
			return n, nil
		default:
			return nil, p.syntaxErr(stop.line, "unexpected %q inside if", keyword(stop.val))
		}
	}
}

func (p *parser) parseFor(open item) (node, error) {
	header := strings.TrimSpace(strings.TrimPrefix(open.val, "for"))
	name, seqSrc, ok := strings.Cut(header, " in ")
	name = strings.TrimSpace(name)
	if !ok || name == "" || !isIdent(name) {
		return nil, p.syntaxErr(open.line, "for: expected \"for <name> in <expr>\"")
	}
	seq, err := parseExpr(seqSrc)
	if err != nil {
		return nil, p.syntaxErr(open.line, "for: %v", err)
	}

	n := &forNode{name: name, seq: seq, line: open.line}
	body, stop, err := p.parseList()
	if err != nil {
		return nil, err
	}
	n.body = body
	if stop == nil {
		return nil, p.syntaxErr(open.line, "unclosed for, missing endfor")
	}

	switch keyword(stop.val) {
	case "endfor":
		return n, nil
	case "else":
		elseBody, end, err := p.parseList()
		if err != nil {
			return nil, err
		}
		if end == nil || keyword(end.val) != "endfor" {
			return nil, p.syntaxErr(stop.line, "else without endfor")
		}
		n.elseBody = elseBody
		return n, nil
	}

	return nil, p.syntaxErr(stop.line, "unexpected %q inside for", keyword(stop.val))
}

func isIdent(s string) bool {
	if s == "" || !isNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNamePart(s[i]) {
			return false
		}
	}

	return true
}
