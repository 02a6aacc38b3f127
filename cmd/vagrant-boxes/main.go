package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/lwmacct/251219-go-pkg-logm/pkg/logm"

	app "github.com/lwmacct/251016-go-vagrant-boxes/internal/command/boxes"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/packer"
)

func main() {
	if err := logm.Init(logm.PresetAuto()...); err != nil {
		slog.Warn("初始化日志系统失败，使用默认配置", "error", err)
	}
	if err := app.Command.Run(context.Background(), os.Args); err != nil {
		slog.Error("应用程序运行失败", "error", err)
		os.Exit(exitCode(err))
	}
}

// exitCode packer 构建失败时沿用其退出状态，其余错误返回 1。
func exitCode(err error) int {
	var bf *packer.BuildFailedError
	if errors.As(err, &bf) && bf.Status > 0 {
		return bf.Status
	}

	return 1
}
