// Package plan 描述模板族：按顺序渲染的文件列表及各自使用的语法 Profile。
package plan

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
)

// DefaultSuffix 模板源文件后缀
const DefaultSuffix = ".tmpl"

// Entry 模板族中的一个文件
type Entry struct {
	Path       string // 斜杠分隔的相对路径，即输出路径
	Profile    tmpl.Profile
	EntryPoint bool // 交给 packer 的入口文件
}

// Family 模板族
type Family struct {
	Name    string
	BaseDir string // 模板源目录，相对于模板根
	Suffix  string
	Entries []Entry
}

// SourcePath 返回条目对应的模板源路径
func (f Family) SourcePath(e Entry) string {
	return path.Join(f.BaseDir, e.Path) + f.Suffix
}

// EntryPoint 返回入口条目
func (f Family) EntryPoint() (Entry, bool) {
	for _, e := range f.Entries {
		if e.EntryPoint {
			return e, true
		}
	}

	return Entry{}, false
}

// InvalidFamilyError 模板族定义不合法
type InvalidFamilyError struct {
	Family string
	Reason string
}

func (e *InvalidFamilyError) Error() string {
	return fmt.Sprintf("invalid family %q: %s", e.Family, e.Reason)
}

// Validate 检查模板族：至少一个条目、恰好一个入口、路径相对且不含 ".."、无重复。
func (f Family) Validate() error {
	invalid := func(format string, args ...any) error {
		return &InvalidFamilyError{Family: f.Name, Reason: fmt.Sprintf(format, args...)}
	}

	if f.Name == "" {
		return invalid("empty name")
	}
	if !isRelative(f.BaseDir) && f.BaseDir != "" {
		return invalid("base dir %q must be relative", f.BaseDir)
	}
	if len(f.Entries) == 0 {
		return invalid("no entries")
	}

	seen := make(map[string]bool, len(f.Entries))
	entryPoints := 0
	for _, e := range f.Entries {
		if e.Path == "" || !isRelative(e.Path) {
			return invalid("entry path %q must be relative", e.Path)
		}
		clean := path.Clean(e.Path)
		if seen[clean] {
			return invalid("duplicate entry %q", e.Path)
		}
		seen[clean] = true
		if err := e.Profile.Validate(); err != nil {
			return invalid("entry %q: %v", e.Path, err)
		}
		if e.EntryPoint {
			entryPoints++
		}
	}
	if entryPoints != 1 {
		return invalid("want exactly one entry point, got %d", entryPoints)
	}

	return nil
}

func isRelative(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}

	return true
}

// UnknownFamilyError 注册表中没有该模板族
type UnknownFamilyError struct {
	Name  string
	Known []string
}

func (e *UnknownFamilyError) Error() string {
	return fmt.Sprintf("unknown template family %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Registry 模板族名称 → 定义
type Registry struct {
	families map[string]Family
}

// NewRegistry 创建注册表，任一模板族不合法时返回错误。
func NewRegistry(families ...Family) (*Registry, error) {
	r := &Registry{families: make(map[string]Family, len(families))}
	for _, f := range families {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register 校验并注册模板族，同名覆盖。
func (r *Registry) Register(f Family) error {
	if f.Suffix == "" {
		f.Suffix = DefaultSuffix
	}
	if err := f.Validate(); err != nil {
		return err
	}
	f.Entries = append([]Entry(nil), f.Entries...)
	r.families[f.Name] = f

	return nil
}

// Lookup 按名称查找模板族
func (r *Registry) Lookup(name string) (Family, error) {
	f, ok := r.families[name]
	if !ok {
		return Family{}, &UnknownFamilyError{Name: name, Known: r.Names()}
	}

	return f, nil
}

// Names 返回排序后的模板族名称
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Builtin 返回内置模板族注册表
func Builtin() *Registry {
	r, err := NewRegistry(Family{
		Name:    "win-10-pro-x64",
		BaseDir: "win-10-pro-x64",
		Suffix:  DefaultSuffix,
		Entries: []Entry{
			{Path: "packer.json", Profile: tmpl.Alternate, EntryPoint: true},
			{Path: "answer_files/Autounattend.xml", Profile: tmpl.Default},
		},
	})
	if err != nil {
		panic(err)
	}

	return r
}
