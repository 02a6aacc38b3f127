package tmpl

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// Vars 渲染参数集：变量名 → 值。
type Vars map[string]any

// Includer 根据 include 标签中的相对路径返回要插入的文本。
type Includer func(path string) (string, error)

// ErrNoIncluder 模板使用了 include 但渲染时未提供 Includer。
var ErrNoIncluder = errors.New("no includer configured")

// Template 已解析的模板：同一 (文本, Profile) 只需解析一次，可重复执行。
type Template struct {
	name    string
	profile Profile
	root    []node
}

// Option 渲染选项
type Option func(*options)

type options struct {
	filters  map[string]Filter
	includer Includer
}

// WithFilters 追加或覆盖过滤器。
func WithFilters(filters map[string]Filter) Option {
	return func(o *options) {
		for k, v := range filters {
			o.filters[k] = v
		}
	}
}

// WithIncluder 设置 include 标签的内容来源。
func WithIncluder(fn Includer) Option {
	return func(o *options) {
		o.includer = fn
	}
}

// Parse 使用 Profile 的定界符解析模板文本。
//
// name 仅用于错误信息，通常为源文件路径。
func Parse(name, text string, p Profile) (*Template, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	items, err := lex(name, text, p)
	if err != nil {
		return nil, err
	}
	root, err := parse(name, items)
	if err != nil {
		return nil, err
	}

	return &Template{name: name, profile: p, root: root}, nil
}

// MustParse 与 [Parse] 相同，出错时 panic。
func MustParse(name, text string, p Profile) *Template {
	t, err := Parse(name, text, p)
	if err != nil {
		panic(err)
	}

	return t
}

// Name 返回模板名称
func (t *Template) Name() string { return t.name }

// Profile 返回解析该模板所用的语法配置
func (t *Template) Profile() Profile { return t.profile }

// Execute 使用 vars 渲染模板并写入 w。
//
// 渲染先写入内部缓冲区，全部成功后才写入 w；任何错误（包括引用未定义变量）
// 都不会产生部分输出。
func (t *Template) Execute(w io.Writer, vars Vars, opts ...Option) error {
	o := &options{filters: Filters()}
	for _, opt := range opts {
		opt(o)
	}

	top := make(map[string]any, len(vars))
	for k, v := range vars {
		top[k] = v
	}
	c := &evalCtx{
		name:    t.name,
		scope:   &scope{vars: top},
		filters: o.filters,
		include: o.includer,
		lenient: !t.profile.StrictUndefined,
	}

	var buf bytes.Buffer
	if err := execList(c, &buf, t.root); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)

	return err
}

// ExecuteString 渲染为字符串。
func (t *Template) ExecuteString(vars Vars, opts ...Option) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, vars, opts...); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// Render 解析并渲染模板文本。
func Render(name, text string, p Profile, vars Vars, opts ...Option) (string, error) {
	t, err := Parse(name, text, p)
	if err != nil {
		return "", err
	}

	return t.ExecuteString(vars, opts...)
}

func execList(c *evalCtx, buf *bytes.Buffer, nodes []node) error {
	for _, n := range nodes {
		if err := execNode(c, buf, n); err != nil {
			return err
		}
	}

	return nil
}

func execNode(c *evalCtx, buf *bytes.Buffer, n node) error {
	switch n := n.(type) {
	case *textNode:
		buf.WriteString(n.text)

	case *outputNode:
		c.line = n.line
		v, err := n.x.eval(c)
		if err != nil {
			return err
		}
		s, err := stringify(v)
		if err != nil {
			return c.errorf("cannot render value: %v", err)
		}
		buf.WriteString(s)

	case *ifNode:
		for _, b := range n.branches {
			c.line = b.line
			v, err := b.cond.eval(c)
			if err != nil {
				return err
			}
			if truthy(v) {
				return execList(c, buf, b.body)
			}
		}
		return execList(c, buf, n.elseBody)

	case *forNode:
		return execFor(c, buf, n)

	case *includeNode:
		c.line = n.line
		v, err := n.path.eval(c)
		if err != nil {
			return err
		}
		path, ok := v.(string)
		if !ok {
			return c.errorf("include path must be a string, got %T", v)
		}
		if c.include == nil {
			return &IncludeError{Template: c.name, Line: n.line, Path: path, Cause: ErrNoIncluder}
		}
		text, err := c.include(path)
		if err != nil {
			return &IncludeError{Template: c.name, Line: n.line, Path: path, Cause: err}
		}
		buf.WriteString(text)
	}

	return nil
}

func execFor(c *evalCtx, buf *bytes.Buffer, n *forNode) error {
	c.line = n.line
	v, err := n.seq.eval(c)
	if err != nil {
		return err
	}
	items, err := iterate(v)
	if err != nil {
		return c.errorf("for: %v", err)
	}
	if len(items) == 0 {
		return execList(c, buf, n.elseBody)
	}

	parent := c.scope
	defer func() { c.scope = parent }()
	for i, it := range items {
		c.scope = &scope{
			parent: parent,
			vars: map[string]any{
				n.name: it,
				"loop": map[string]any{
					"index":  i + 1,
					"index0": i,
					"first":  i == 0,
					"last":   i == len(items)-1,
					"length": len(items),
				},
			},
		}
		if err := execList(c, buf, n.body); err != nil {
			return err
		}
	}

	return nil
}
