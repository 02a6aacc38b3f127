package tmpl

import (
	"errors"
	"fmt"
	"sort"
)

// ═══════════════════════════════════════════════════════════════════════════
// 语法配置 (Syntax Profile)
// ═══════════════════════════════════════════════════════════════════════════

var (
	ErrDelimsEmpty   = errors.New("delimiters cannot be empty strings")
	ErrDelimsCollide = errors.New("block and variable delimiters collide")
	ErrDelimsShared  = errors.New("profiles share a delimiter")
)

// Profile 描述一种模板语法：块标签与变量标签的四个定界符，以及未定义变量策略。
//
// StrictUndefined 为 true 时引用未定义变量报 [UndefinedVariableError]；
// 为 false 时未定义值按 nil 处理（输出为空串）。内置 Profile 均为严格模式。
//
// 同一个模板族中的文件可以分别使用不同的 Profile，因此任意两个 Profile
// 之间不得共用定界符，见 [CheckDisjoint]。
type Profile struct {
	Name            string
	BlockStart      string
	BlockEnd        string
	VariableStart   string
	VariableEnd     string
	StrictUndefined bool
}

// Default 适用于内容中不含冲突语法的文件（例如 XML 应答文件）。
var Default = Profile{
	Name:            "default",
	BlockStart:      "{%",
	BlockEnd:        "%}",
	VariableStart:   "{{",
	VariableEnd:     "}}",
	StrictUndefined: true,
}

// Alternate 适用于原生格式本身使用 {{ }} 的文件（例如 packer JSON 模板）。
var Alternate = Profile{
	Name:            "alternate",
	BlockStart:      "@=",
	BlockEnd:        "=@",
	VariableStart:   "@@",
	VariableEnd:     "@@",
	StrictUndefined: true,
}

var profiles = map[string]Profile{
	Default.Name:   Default,
	Alternate.Name: Alternate,
}

func init() {
	if err := CheckDisjoint(Default, Alternate); err != nil {
		panic(err)
	}
}

// ProfileByName 按名称查找内置 Profile。
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown syntax profile %q (known: %v)", name, ProfileNames())
	}

	return p, nil
}

// ProfileNames 返回内置 Profile 名称（已排序）。
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Validate 检查定界符非空，且块定界符与变量定界符互不相同。
//
// 变量起止定界符允许相同（如 Alternate 的 @@...@@），词法分析总是从起始
// 定界符之后查找结束定界符。
func (p Profile) Validate() error {
	for _, d := range p.delims() {
		if d == "" {
			return fmt.Errorf("profile %q: %w", p.Name, ErrDelimsEmpty)
		}
	}
	for _, b := range []string{p.BlockStart, p.BlockEnd} {
		for _, v := range []string{p.VariableStart, p.VariableEnd} {
			if b == v {
				return fmt.Errorf("profile %q: %w: %q", p.Name, ErrDelimsCollide, b)
			}
		}
	}

	return nil
}

// CheckDisjoint 校验两个 Profile 各自合法且没有共用的定界符。
func CheckDisjoint(a, b Profile) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	for _, x := range a.delims() {
		for _, y := range b.delims() {
			if x == y {
				return fmt.Errorf("%w: %q used by %q and %q", ErrDelimsShared, x, a.Name, b.Name)
			}
		}
	}

	return nil
}

func (p Profile) delims() []string {
	return []string{p.BlockStart, p.BlockEnd, p.VariableStart, p.VariableEnd}
}

func (p Profile) String() string {
	return fmt.Sprintf("%s(%s %s %s %s)", p.Name, p.BlockStart, p.BlockEnd, p.VariableStart, p.VariableEnd)
}
