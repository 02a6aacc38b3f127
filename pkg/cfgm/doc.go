// Package cfgm 提供基于 koanf 的分层配置加载。
//
// # 加载优先级 (从低到高)
//
//  1. 默认值 - defaultConfig 参数
//  2. 配置文件 - [WithConfigPaths]，支持 .yaml / .json / .toml
//  3. 内存配置 - [WithRawBytes]
//  4. 环境变量(前缀) - [WithEnvPrefix]
//  5. 环境变量(绑定) - [WithEnvBindKey](配置文件) < [WithEnvBinding](代码)
//  6. CLI flags - [WithCommand]，仅用户明确指定的 flag
//
// # 快速开始
//
//	cfg, err := cfgm.Load(DefaultConfig(),
//	    cfgm.WithConfigPaths(cfgm.DefaultPaths("vagrant-boxes")...),
//	    cfgm.WithEnvPrefix("VB_"),
//	    cfgm.WithEnvBindKey("envbind"),
//	    cfgm.WithCommand(cmd),
//	)
//
// # 环境变量
//
// [WithEnvPrefix] 为每个叶子 key 生成绑定：前缀 + 大写 key，"." 与 "-" 转为 "_"。
//   - VB_FAMILY → family
//   - VB_OS_VARIANT → os_variant
//   - VB_PACKER_BINARY → packer.binary
//
// 切片字段的环境变量按逗号拆分：VB_BUILDERS=qemu,virtualbox-iso。
//
// # CLI Flag 映射
//
// koanf key 中的 "." 与 "_" 均转为 "-"：
//   - os_variant → --os-variant
//   - templates.dir → --templates-dir
//
// # 序列化
//
//   - [ExampleYAML]: 依据 desc tag 生成带注释的示例
//   - [Marshal]: yaml / json / toml
package cfgm
