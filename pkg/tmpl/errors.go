package tmpl

import (
	"errors"
	"fmt"
)

// ErrUndefinedVariable 可配合 errors.Is 判断未定义变量错误。
var ErrUndefinedVariable = errors.New("undefined variable")

// UndefinedVariableError 模板引用了参数集中不存在的变量。
type UndefinedVariableError struct {
	Name     string
	Template string
	Line     int
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("%s:%d: undefined variable %q", e.Template, e.Line, e.Name)
}

func (e *UndefinedVariableError) Is(target error) bool {
	return target == ErrUndefinedVariable
}

// SyntaxError 模板或表达式语法错误。
type SyntaxError struct {
	Template string
	Line     int
	Message  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: syntax error: %s", e.Template, e.Line, e.Message)
}

// EvalError 表达式求值失败（类型不匹配、不可迭代等）。
type EvalError struct {
	Template string
	Line     int
	Message  string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Template, e.Line, e.Message)
}

// FilterError 过滤器执行失败。
type FilterError struct {
	Template string
	Line     int
	Filter   string
	Cause    error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("%s:%d: filter %q: %v", e.Template, e.Line, e.Filter, e.Cause)
}

func (e *FilterError) Unwrap() error {
	return e.Cause
}

// IncludeError include 标签无法取得目标内容。
type IncludeError struct {
	Template string
	Line     int
	Path     string
	Cause    error
}

func (e *IncludeError) Error() string {
	return fmt.Sprintf("%s:%d: include %q: %v", e.Template, e.Line, e.Path, e.Cause)
}

func (e *IncludeError) Unwrap() error {
	return e.Cause
}
