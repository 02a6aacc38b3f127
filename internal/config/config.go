// Package config 提供应用配置管理。
//
// 配置加载优先级 (从低到高)：
//  1. 默认值 - DefaultConfig() 函数中定义
//  2. 配置文件 - --config 指定，或 cfgm.DefaultPaths 搜索
//  3. 环境变量 - VB_ 前缀，以及配置文件 envbind 中的绑定
//  4. CLI flags - 仅用户明确指定的 flag
package config

import (
	"github.com/urfave/cli/v3"

	"github.com/lwmacct/251016-go-vagrant-boxes/internal/params"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/plan"
	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/cfgm"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "VB_"

// Config 应用配置
type Config struct {
	Family        string          `koanf:"family" desc:"模板族名称"`
	Builders      []string        `koanf:"builders" desc:"packer builders，按顺序渲染到 packer.json"`
	OSVariant     string          `koanf:"os_variant" desc:"Windows 版本: pro | home"`
	Locale        string          `koanf:"locale" desc:"安装语言与区域"`
	Timezone      string          `koanf:"timezone" desc:"Windows 时区名"`
	WindowsUpdate bool            `koanf:"windows_update" desc:"安装时执行 Windows Update"`
	Libvirt       bool            `koanf:"libvirt" desc:"在应答文件中加入 virtio 驱动"`
	Build         bool            `koanf:"build" desc:"暂存后运行 packer build"`
	Clean         bool            `koanf:"clean" desc:"结束后删除暂存目录"`
	Validate      bool            `koanf:"validate" desc:"按扩展名校验渲染结果"`
	Templates     TemplatesConfig `koanf:"templates" desc:"模板来源"`
	Packer        PackerConfig    `koanf:"packer" desc:"packer 调用"`
}

// TemplatesConfig 模板来源配置
type TemplatesConfig struct {
	Dir      string `koanf:"dir" desc:"模板根目录"`
	Builtin  bool   `koanf:"builtin" desc:"使用内置模板，忽略 dir"`
	Registry string `koanf:"registry" desc:"额外模板族定义文件 (YAML)"`
}

// PackerConfig packer 调用配置
type PackerConfig struct {
	Binary string            `koanf:"binary" desc:"packer 可执行文件"`
	Only   []string          `koanf:"only" desc:"仅构建这些 builders (-only)"`
	Vars   map[string]string `koanf:"vars" desc:"额外的 -var 参数"`
}

// DefaultConfig 返回默认配置
// 注意：internal/command/command.go 中的 Defaults 变量引用此函数以实现单一配置来源。
func DefaultConfig() Config {
	return Config{
		Family:        "win-10-pro-x64",
		Builders:      params.DefaultBuilders(),
		OSVariant:     params.DefaultVariant,
		Locale:        params.DefaultLocale,
		Timezone:      params.DefaultTimezone,
		WindowsUpdate: true,
		Build:         true,
		Clean:         true,
		Validate:      true,
		Templates: TemplatesConfig{
			Dir: ".",
		},
		Packer: PackerConfig{
			Binary: "packer",
			Only:   []string{},
			Vars:   map[string]string{},
		},
	}
}

// Load 加载配置；cmd 中的 --config 优先于默认搜索路径。
func Load(cmd *cli.Command, appName string, opts ...cfgm.Option) (*Config, error) {
	paths := cfgm.DefaultPaths(appName)
	if cmd != nil && cmd.String("config") != "" {
		paths = []string{cmd.String("config")}
	}

	return cfgm.Load(
		DefaultConfig(),
		append([]cfgm.Option{
			cfgm.WithConfigPaths(paths...),
			cfgm.WithEnvPrefix(EnvPrefix),
			cfgm.WithEnvBindKey("envbind"),
			cfgm.WithCommand(cmd),
		}, opts...)...,
	)
}

// ParamsOptions 转换为参数集输入
func (c *Config) ParamsOptions() params.Options {
	return params.Options{
		Builders: c.Builders,
		Variant:  c.OSVariant,
		Locale:   c.Locale,
		Timezone: c.Timezone,
		NoUpdate: !c.WindowsUpdate,
		Libvirt:  c.Libvirt,
	}
}

// Registry 返回内置模板族，并合并 templates.registry 中的定义。
func (c *Config) Registry() (*plan.Registry, error) {
	r := plan.Builtin()
	if c.Templates.Registry == "" {
		return r, nil
	}
	if err := r.LoadFile(c.Templates.Registry); err != nil {
		return nil, err
	}

	return r, nil
}
