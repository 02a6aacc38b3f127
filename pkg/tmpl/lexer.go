package tmpl

import (
	"strings"
	"unicode"
)

// itemType 词法单元类型
type itemType int

const (
	itemText itemType = iota
	itemVariable
	itemBlock
)

// item 词法单元：一段原样文本，或一个变量/块标签的内部内容。
type item struct {
	typ       itemType
	val       string
	line      int
	trimLeft  bool // 起始定界符后紧跟 "-"
	trimRight bool // 结束定界符前紧跟 "-"
}

// lex 按 Profile 的定界符切分模板文本。
//
// 未出现 Profile 定界符的内容（包括其他 Profile 的定界符）原样保留为文本。
func lex(name, input string, p Profile) ([]item, error) {
	var items []item
	line := 1
	pos := 0

	for pos < len(input) {
		idx, typ := nextOpen(input[pos:], p)
		if idx < 0 {
			items = append(items, item{typ: itemText, val: input[pos:], line: line})
			break
		}
		if idx > 0 {
			text := input[pos : pos+idx]
			items = append(items, item{typ: itemText, val: text, line: line})
			line += strings.Count(text, "\n")
		}

		open, closing := p.VariableStart, p.VariableEnd
		if typ == itemBlock {
			open, closing = p.BlockStart, p.BlockEnd
		}

		bodyStart := pos + idx + len(open)
		end := findClose(input, bodyStart, closing)
		if end < 0 {
			return nil, &SyntaxError{Template: name, Line: line, Message: "unclosed tag, missing " + closing}
		}

		body := input[bodyStart:end]
		it := item{typ: typ, line: line}
		if strings.HasPrefix(body, "-") {
			it.trimLeft = true
			body = body[1:]
		}
		if strings.HasSuffix(body, "-") {
			it.trimRight = true
			body = body[:len(body)-1]
		}
		it.val = strings.TrimSpace(body)
		items = append(items, it)

		line += strings.Count(input[pos+idx:end+len(closing)], "\n")
		pos = end + len(closing)
	}

	applyTrim(items)

	return items, nil
}

// nextOpen 返回最近的起始定界符位置及其类型；位置相同时较长的定界符优先。
func nextOpen(s string, p Profile) (int, itemType) {
	bi := strings.Index(s, p.BlockStart)
	vi := strings.Index(s, p.VariableStart)

	switch {
	case bi < 0 && vi < 0:
		return -1, itemText
	case bi < 0:
		return vi, itemVariable
	case vi < 0:
		return bi, itemBlock
	case bi < vi:
		return bi, itemBlock
	case vi < bi:
		return vi, itemVariable
	case len(p.BlockStart) >= len(p.VariableStart):
		return bi, itemBlock
	default:
		return vi, itemVariable
	}
}

// findClose 从 from 开始查找结束定界符，跳过引号内的内容。
func findClose(s string, from int, closing string) int {
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if strings.HasPrefix(s[i:], closing) {
			return i
		}
	}

	return -1
}

// applyTrim 处理 "-" 空白控制标记。
func applyTrim(items []item) {
	for i := range items {
		if items[i].typ == itemText {
			continue
		}
		if items[i].trimLeft && i > 0 && items[i-1].typ == itemText {
			items[i-1].val = strings.TrimRightFunc(items[i-1].val, unicode.IsSpace)
		}
		if items[i].trimRight && i+1 < len(items) && items[i+1].typ == itemText {
			items[i+1].val = strings.TrimLeftFunc(items[i+1].val, unicode.IsSpace)
		}
	}
}
