// Package packer 调用外部镜像构建工具 packer。
package packer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// DefaultBinary 默认可执行文件
const DefaultBinary = "packer"

// Invoker 以暂存后的入口文件启动一次构建
type Invoker interface {
	Invoke(ctx context.Context, entryPoint, sourceDir string) error
}

// BuildFailedError packer 以非零状态退出
type BuildFailedError struct {
	Status int
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("packer build failed with exit status %d", e.Status)
}

// Runner 基于 os/exec 的 [Invoker]
type Runner struct {
	binary string
	vars   map[string]string
	only   []string
	stdout io.Writer
	stderr io.Writer
}

// Option Runner 选项
type Option func(*Runner)

// WithBinary 设置 packer 可执行文件路径。
func WithBinary(bin string) Option {
	return func(r *Runner) {
		if bin != "" {
			r.binary = bin
		}
	}
}

// WithVars 追加 -var 参数；source_dir 由 Invoke 决定，此处设置无效。
func WithVars(vars map[string]string) Option {
	return func(r *Runner) {
		for k, v := range vars {
			r.vars[k] = v
		}
	}
}

// WithOnly 仅构建指定的 builders（-only）。
func WithOnly(builders ...string) Option {
	return func(r *Runner) { r.only = append(r.only, builders...) }
}

// WithOutput 设置子进程的 stdout / stderr，默认透传到当前进程。
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// New 创建 Runner
func New(opts ...Option) *Runner {
	r := &Runner{
		binary: DefaultBinary,
		vars:   make(map[string]string),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Args 返回 build 子命令的参数列表。
func (r *Runner) Args(entryPoint, sourceDir string) []string {
	args := []string{"build", "-var", "source_dir=" + sourceDir}

	keys := make([]string, 0, len(r.vars))
	for k := range r.vars {
		if k != "source_dir" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-var", k+"="+r.vars[k])
	}
	if len(r.only) > 0 {
		args = append(args, "-only="+strings.Join(r.only, ","))
	}

	return append(args, entryPoint)
}

// Invoke 运行 packer build 并等待退出。
//
// ctx 取消时子进程被终止。输出不做解析。
func (r *Runner) Invoke(ctx context.Context, entryPoint, sourceDir string) error {
	args := r.Args(entryPoint, sourceDir)
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	slog.Info("Running packer", "binary", r.binary, "args", args)
	err := cmd.Run()
	if err == nil {
		slog.Info("Packer build finished", "entry_point", entryPoint)
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return fmt.Errorf("packer build interrupted: %w", ctx.Err())
		}
		return &BuildFailedError{Status: exitErr.ExitCode()}
	}

	return fmt.Errorf("failed to run %s: %w", r.binary, err)
}
