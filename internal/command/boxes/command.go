// Package boxes 提供 vagrant-boxes 根命令及其子命令。
package boxes

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lwmacct/251207-go-pkg-version/pkg/version"
	"github.com/urfave/cli/v3"

	templates "github.com/lwmacct/251016-go-vagrant-boxes"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/command"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/config"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/packer"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/params"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/pipeline"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/stage"
	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/cfgm"
	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
)

// Command 根命令
var Command = New()

// New 创建根命令，每次调用返回独立实例。
func New() *cli.Command {
	return &cli.Command{
		Name:   "vagrant-boxes",
		Usage:  "渲染 VM 镜像模板族并调用 packer 构建 Vagrant box",
		Flags:  flags(),
		Action: action,
		Commands: []*cli.Command{
			version.Command,
			familiesCommand(),
			renderCommand(),
			configCommand(),
		},
	}
}

func flags() []cli.Flag {
	d := command.Defaults

	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "配置文件路径 (默认按搜索路径查找)",
		},
		&cli.StringFlag{
			Name:    "family",
			Aliases: []string{"f"},
			Value:   d.Family,
			Usage:   "模板族名称",
		},
		&cli.StringSliceFlag{
			Name:    "builders",
			Aliases: []string{"b"},
			Value:   d.Builders,
			Usage:   "packer builders，可重复",
		},
		&cli.StringFlag{
			Name:    "os-variant",
			Aliases: []string{"w"},
			Value:   d.OSVariant,
			Usage:   "Windows 版本: " + strings.Join(params.VariantKeys(), " | "),
		},
		&cli.StringFlag{
			Name:    "locale",
			Aliases: []string{"l"},
			Value:   d.Locale,
			Usage:   "安装语言与区域",
		},
		&cli.StringFlag{
			Name:    "timezone",
			Aliases: []string{"t"},
			Value:   d.Timezone,
			Usage:   "Windows 时区名",
		},
		&cli.BoolWithInverseFlag{
			Name:  "windows-update",
			Value: d.WindowsUpdate,
			Usage: "安装时执行 Windows Update (--no-windows-update 跳过)",
		},
		&cli.BoolFlag{
			Name:  "libvirt",
			Value: d.Libvirt,
			Usage: "在应答文件中加入 virtio 驱动",
		},
		&cli.BoolWithInverseFlag{
			Name:  "build",
			Value: d.Build,
			Usage: "暂存后运行 packer build (--no-build 只暂存)",
		},
		&cli.BoolWithInverseFlag{
			Name:  "clean",
			Value: d.Clean,
			Usage: "结束后删除暂存目录 (--no-clean 保留)",
		},
		&cli.BoolFlag{
			Name:  "validate",
			Value: d.Validate,
			Usage: "按扩展名校验渲染结果",
		},
		&cli.StringFlag{
			Name:  "templates-dir",
			Value: d.Templates.Dir,
			Usage: "模板根目录",
		},
		&cli.BoolFlag{
			Name:  "templates-builtin",
			Value: d.Templates.Builtin,
			Usage: "使用内置模板",
		},
		&cli.StringFlag{
			Name:  "templates-registry",
			Value: d.Templates.Registry,
			Usage: "额外模板族定义文件 (YAML)",
		},
		&cli.StringFlag{
			Name:  "packer-binary",
			Value: d.Packer.Binary,
			Usage: "packer 可执行文件",
		},
		&cli.StringSliceFlag{
			Name:  "packer-only",
			Usage: "仅构建这些 builders (-only)",
		},
		&cli.StringMapFlag{
			Name:  "packer-vars",
			Usage: "额外的 -var 参数 (key=value)",
		},
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd, version.GetAppRawName())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

func templateSource(cfg *config.Config) fs.FS {
	if cfg.Templates.Builtin {
		return templates.Templates()
	}

	return os.DirFS(cfg.Templates.Dir)
}

func action(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Debug("Configuration loaded", "family", cfg.Family, "builders", cfg.Builders, "build", cfg.Build)

	return pipeline.Run(ctx, pipeline.Options{
		Family:   cfg.Family,
		Params:   cfg.ParamsOptions(),
		Registry: registry,
		Source:   templateSource(cfg),
		Stage:    []stage.Option{stage.WithValidation(cfg.Validate)},
		Build:    cfg.Build,
		Clean:    cfg.Clean,
		Invoker: packer.New(
			packer.WithBinary(cfg.Packer.Binary),
			packer.WithOnly(cfg.Packer.Only...),
			packer.WithVars(cfg.Packer.Vars),
			packer.WithOutput(cmd.Root().Writer, cmd.Root().ErrWriter),
		),
	})
}

func familiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "families",
		Usage: "列出已注册的模板族及其渲染计划",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			registry, err := cfg.Registry()
			if err != nil {
				return err
			}

			w := cmd.Root().Writer
			for _, name := range registry.Names() {
				f, _ := registry.Lookup(name)
				_, _ = fmt.Fprintf(w, "%s (%s)\n", f.Name, f.BaseDir)
				for i, e := range f.Entries {
					mark := ""
					if e.EntryPoint {
						mark = ", entry point"
					}
					_, _ = fmt.Fprintf(w, "  %d. %s [%s%s]\n", i+1, e.Path, e.Profile.Name, mark)
				}
			}

			return nil
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "用当前参数集渲染单个模板文件到标准输出",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Value:   tmpl.Default.Name,
				Usage:   "语法 Profile: " + strings.Join(tmpl.ProfileNames(), " | "),
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("render: want exactly one template file, got %d", cmd.NArg())
			}
			file := cmd.Args().First()

			profile, err := tmpl.ProfileByName(cmd.String("profile"))
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := params.Build(cfg.ParamsOptions())
			if err != nil {
				return err
			}

			text, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}
			t, err := tmpl.Parse(file, string(text), profile)
			if err != nil {
				return err
			}

			return t.Execute(cmd.Root().Writer, p.Vars())
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "打印生效的配置",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Value: "yaml",
				Usage: "输出格式: yaml | json | toml",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := cfgm.Marshal(*cfg, cmd.String("format"))
			if err != nil {
				return err
			}
			_, err = cmd.Root().Writer.Write(data)

			return err
		},
	}
}
