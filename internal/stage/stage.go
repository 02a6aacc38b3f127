// Package stage 将模板族渲染到全新的暂存目录。
package stage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/lwmacct/251016-go-vagrant-boxes/internal/plan"
	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
)

// DefaultPrefix 暂存目录名前缀
const DefaultPrefix = "vb"

// Result 一次暂存的结果
type Result struct {
	Dir        string   // 暂存目录绝对路径
	EntryPoint string   // 入口文件绝对路径
	Files      []string // 已写入的文件，按计划顺序
}

// Stager 暂存编排器
type Stager struct {
	registry   *plan.Registry
	source     fs.FS
	root       string
	prefix     string
	validate   bool
	validators map[string]formatValidator
}

// Option 暂存选项
type Option func(*Stager)

// WithRoot 设置暂存目录的父目录，默认当前工作目录。
func WithRoot(dir string) Option {
	return func(s *Stager) { s.root = dir }
}

// WithPrefix 设置暂存目录名前缀。
func WithPrefix(prefix string) Option {
	return func(s *Stager) { s.prefix = prefix }
}

// WithValidation 开关渲染结果的格式校验，默认开启。
func WithValidation(on bool) Option {
	return func(s *Stager) { s.validate = on }
}

// WithValidator 为扩展名（如 ".ini"）注册额外的校验器。
func WithValidator(ext, format string, fn Validator) Option {
	return func(s *Stager) { s.validators[ext] = formatValidator{format: format, fn: fn} }
}

// New 创建暂存编排器，source 为模板根。
func New(registry *plan.Registry, source fs.FS, opts ...Option) *Stager {
	s := &Stager{
		registry:   registry,
		source:     source,
		prefix:     DefaultPrefix,
		validate:   true,
		validators: make(map[string]formatValidator, len(defaultValidators)),
	}
	for ext, v := range defaultValidators {
		s.validators[ext] = v
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Stage 按计划顺序渲染模板族 family 的全部文件。
//
// 暂存目录一旦创建，返回的 Result 即非 nil（出错时也是），调用方据此清理。
// 已写入的文件保留在原位。
func (s *Stager) Stage(family string, vars tmpl.Vars) (*Result, error) {
	f, err := s.registry.Lookup(family)
	if err != nil {
		return nil, err
	}

	root := s.root
	if root == "" {
		if root, err = os.Getwd(); err != nil {
			return nil, &StagingCreateError{Root: ".", Err: err}
		}
	}
	dir, err := os.MkdirTemp(root, s.prefix)
	if err != nil {
		return nil, &StagingCreateError{Root: root, Err: err}
	}
	if abs, absErr := filepath.Abs(dir); absErr == nil {
		dir = abs
	}
	slog.Info("Staging directory created", "dir", dir, "family", f.Name)

	res := &Result{Dir: dir}
	for _, e := range f.Entries {
		target, err := s.stageEntry(f, e, dir, vars)
		if err != nil {
			return res, err
		}
		res.Files = append(res.Files, target)
		if e.EntryPoint {
			res.EntryPoint = target
		}
	}

	return res, nil
}

func (s *Stager) stageEntry(f plan.Family, e plan.Entry, dir string, vars tmpl.Vars) (string, error) {
	source := f.SourcePath(e)
	target := filepath.Join(dir, filepath.FromSlash(e.Path))

	text, err := fs.ReadFile(s.source, source)
	if err != nil {
		return "", &TemplateNotFoundError{Family: f.Name, Path: source, Err: err}
	}

	t, err := tmpl.Parse(source, string(text), e.Profile)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	out, err := t.ExecuteString(vars, tmpl.WithIncluder(stagedIncluder(dir)))
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	if s.validate {
		if err := validateWith(s.validators, e.Path, []byte(out)); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", &TemplateWriteError{Path: target, Err: err}
	}
	if err := os.WriteFile(target, []byte(out), 0o600); err != nil {
		return "", &TemplateWriteError{Path: target, Err: err}
	}
	slog.Debug("Template rendered", "source", source, "target", target, "profile", e.Profile.Name)

	return target, nil
}

// ErrEscape include 路径指向暂存目录之外
var ErrEscape = errors.New("path escapes staging directory")

// stagedIncluder 读取已暂存的文件，路径相对于暂存目录。
func stagedIncluder(dir string) tmpl.Includer {
	return func(name string) (string, error) {
		rel := path.Clean(name)
		if path.IsAbs(name) || !fs.ValidPath(rel) {
			return "", fmt.Errorf("%q: %w", name, ErrEscape)
		}

		root, err := os.OpenRoot(dir)
		if err != nil {
			return "", err
		}
		defer root.Close()

		f, err := root.Open(filepath.FromSlash(rel))
		if err != nil {
			return "", err
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return "", err
		}

		return string(data), nil
	}
}

// Cleanup 递归删除暂存目录，失败只记录日志。
func Cleanup(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove staging directory", "dir", dir, "error", err)
		return
	}
	slog.Info("Staging directory removed", "dir", dir)
}
