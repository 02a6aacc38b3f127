// Package pipeline 串联参数构建、暂存、packer 构建与清理。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/lwmacct/251016-go-vagrant-boxes/internal/packer"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/params"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/plan"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/stage"
)

// Options 一次运行的输入
type Options struct {
	Family   string
	Params   params.Options
	Registry *plan.Registry
	Source   fs.FS
	Stage    []stage.Option

	Build bool
	Clean bool

	// SourceDir 作为 packer 的 source_dir 变量，默认当前工作目录
	SourceDir string
	Invoker   packer.Invoker
}

// Run 执行一次完整流程。
//
// 暂存目录创建后，无论成功、失败或 ctx 取消，Clean 为 true 时都会被删除。
func Run(ctx context.Context, o Options) error {
	if o.Registry == nil || o.Source == nil {
		return errors.New("pipeline: registry and template source are required")
	}
	if o.Build && o.Invoker == nil {
		return errors.New("pipeline: build requested without an invoker")
	}

	p, err := params.Build(o.Params)
	if err != nil {
		return err
	}

	res, err := stage.New(o.Registry, o.Source, o.Stage...).Stage(o.Family, p.Vars())
	if res != nil {
		defer finish(res.Dir, o.Clean)
	}
	if err != nil {
		return fmt.Errorf("failed to stage family %q: %w", o.Family, err)
	}

	if !o.Build {
		slog.Info("Build skipped", "entry_point", res.EntryPoint)
		return nil
	}

	sourceDir := o.SourceDir
	if sourceDir == "" {
		if sourceDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to resolve source dir: %w", err)
		}
	}

	return o.Invoker.Invoke(ctx, res.EntryPoint, sourceDir)
}

func finish(dir string, clean bool) {
	if !clean {
		slog.Info("Staging directory kept", "dir", dir)
		return
	}
	stage.Cleanup(dir)
}
