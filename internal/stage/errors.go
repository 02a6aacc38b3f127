package stage

import "fmt"

// TemplateNotFoundError 模板源文件不存在或不可读
type TemplateNotFoundError struct {
	Family string
	Path   string
	Err    error
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %s of family %q not found: %v", e.Path, e.Family, e.Err)
}

func (e *TemplateNotFoundError) Unwrap() error { return e.Err }

// StagingCreateError 无法创建暂存目录
type StagingCreateError struct {
	Root string
	Err  error
}

func (e *StagingCreateError) Error() string {
	return fmt.Sprintf("cannot create staging directory in %s: %v", e.Root, e.Err)
}

func (e *StagingCreateError) Unwrap() error { return e.Err }

// TemplateWriteError 无法写入渲染结果
type TemplateWriteError struct {
	Path string
	Err  error
}

func (e *TemplateWriteError) Error() string {
	return fmt.Sprintf("cannot write %s: %v", e.Path, e.Err)
}

func (e *TemplateWriteError) Unwrap() error { return e.Err }

// InvalidOutputError 渲染结果不符合其文件格式
type InvalidOutputError struct {
	Path   string
	Format string
	Err    error
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("rendered %s is not valid %s: %v", e.Path, e.Format, e.Err)
}

func (e *InvalidOutputError) Unwrap() error { return e.Err }
