// Package command 提供 vagrant-boxes 命令行的公共部分。
package command

import "github.com/lwmacct/251016-go-vagrant-boxes/internal/config"

// Defaults 默认配置 - 单一来源 (Single Source of Truth)
var Defaults = config.DefaultConfig()
