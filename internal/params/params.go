// Package params 构建模板渲染所需的参数集。
package params

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
)

// 默认值
const (
	DefaultVariant  = "pro"
	DefaultLocale   = "en-US"
	DefaultTimezone = "Pacific Standard Time"
)

// DefaultBuilders 默认的 packer builders
func DefaultBuilders() []string {
	return []string{"virtualbox-iso", "qemu"}
}

// Variants 版本标识 → 安装镜像中的 Windows 版本名称
var Variants = map[string]string{
	"pro":  "Windows 10 Pro",
	"home": "Windows 10 Home",
}

// VariantKeys 返回排序后的版本标识
func VariantKeys() []string {
	keys := make([]string, 0, len(Variants))
	for k := range Variants {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// UnknownVariantError 版本标识不在 [Variants] 中
type UnknownVariantError struct {
	Key   string
	Known []string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown OS variant %q (known: %s)", e.Key, strings.Join(e.Known, ", "))
}

// Options 构建参数集的输入，零值字段取默认值
type Options struct {
	Builders []string
	Variant  string
	Locale   string
	Timezone string
	// NoUpdate 为 true 时关闭 Windows Update
	NoUpdate bool
	Libvirt  bool
}

// Params 不可变的参数集
type Params struct {
	builders      []string
	osVariant     string
	locale        string
	timezone      string
	performUpdate bool
	libvirt       bool
}

// Build 校验 Options 并生成参数集。
func Build(o Options) (Params, error) {
	variant := o.Variant
	if variant == "" {
		variant = DefaultVariant
	}
	label, ok := Variants[variant]
	if !ok {
		return Params{}, &UnknownVariantError{Key: variant, Known: VariantKeys()}
	}

	p := Params{
		builders:      slices.Clone(o.Builders),
		osVariant:     label,
		locale:        o.Locale,
		timezone:      o.Timezone,
		performUpdate: !o.NoUpdate,
		libvirt:       o.Libvirt,
	}
	if len(p.builders) == 0 {
		p.builders = DefaultBuilders()
	}
	if p.locale == "" {
		p.locale = DefaultLocale
	}
	if p.timezone == "" {
		p.timezone = DefaultTimezone
	}

	return p, nil
}

// Builders 返回 builders 副本
func (p Params) Builders() []string { return slices.Clone(p.builders) }

// OSVariant 返回 Windows 版本名称
func (p Params) OSVariant() string { return p.osVariant }

// Locale 返回语言区域
func (p Params) Locale() string { return p.locale }

// Timezone 返回 Windows 时区名
func (p Params) Timezone() string { return p.timezone }

// PerformUpdate 是否在安装时执行 Windows Update
func (p Params) PerformUpdate() bool { return p.performUpdate }

// Libvirt 是否加载 virtio 驱动
func (p Params) Libvirt() bool { return p.libvirt }

// Vars 返回模板变量，每次调用生成新的 map。
func (p Params) Vars() tmpl.Vars {
	return tmpl.Vars{
		"builders":        slices.Clone(p.builders),
		"windows_version": p.osVariant,
		"locale_language": p.locale,
		"timezone":        p.timezone,
		"perform_update":  p.performUpdate,
		"libvirt":         p.libvirt,
	}
}
