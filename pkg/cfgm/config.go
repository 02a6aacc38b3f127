package cfgm

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"
)

// Option 配置加载选项
type Option func(*options)

type options struct {
	cmd         *cli.Command
	configPaths []string
	raw         []rawSource
	envPrefix   string
	envBindKey  string
	envBindings map[string]string
}

type rawSource struct {
	data   []byte
	format string
}

// WithCommand 使用 CLI 中用户明确指定的 flags 覆盖配置（最高优先级）。
func WithCommand(cmd *cli.Command) Option {
	return func(o *options) { o.cmd = cmd }
}

// WithConfigPaths 设置配置文件搜索路径，按顺序找到第一个存在的文件即停止。
func WithConfigPaths(paths ...string) Option {
	return func(o *options) { o.configPaths = append(o.configPaths, paths...) }
}

// WithRawBytes 在配置文件之后加载一段内存中的配置文本。
//
// format 取值 yaml / json / toml。
func WithRawBytes(data []byte, format string) Option {
	return func(o *options) { o.raw = append(o.raw, rawSource{data: data, format: format}) }
}

// WithEnvPrefix 启用环境变量前缀，自动为每个 koanf key 生成绑定：
// 前缀 + 大写 key，"." 与 "-" 转为 "_"。
func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envPrefix = prefix }
}

// WithEnvBinding 将单个环境变量直接绑定到 koanf key。
func WithEnvBinding(envName, koanfKey string) Option {
	return func(o *options) {
		if o.envBindings == nil {
			o.envBindings = make(map[string]string)
		}
		o.envBindings[envName] = koanfKey
	}
}

// WithEnvBindings 批量绑定环境变量。
func WithEnvBindings(bindings map[string]string) Option {
	return func(o *options) {
		for env, key := range bindings {
			WithEnvBinding(env, key)(o)
		}
	}
}

// WithEnvBindKey 从配置文件的指定 key 读取环境变量绑定表。
func WithEnvBindKey(key string) Option {
	return func(o *options) { o.envBindKey = key }
}

// DefaultPaths 返回默认配置文件搜索路径。
//
// appName 可选，若提供则追加当前目录、XDG 配置目录、用户主目录和系统配置目录
// 中的应用专属路径。
func DefaultPaths(appName ...string) []string {
	paths := []string{
		"config.yaml",
		"config/config.yaml",
	}

	if len(appName) == 0 || appName[0] == "" {
		return paths
	}

	name := appName[0]
	paths = append(paths, "."+name+".yaml")
	paths = append(paths, filepath.Join(xdg.ConfigHome, name, "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+name+".yaml"))
	}
	paths = append(paths, "/etc/"+name+"/config.yaml")

	return paths
}

// Load 加载配置，按优先级合并 (从低到高)：
//  1. 默认值 - defaultConfig
//  2. 配置文件 - WithConfigPaths，找到第一个即停止
//  3. 内存配置 - WithRawBytes
//  4. 环境变量(前缀) - WithEnvPrefix
//  5. 环境变量(绑定) - WithEnvBindKey(配置文件) < WithEnvBinding(代码)
//  6. CLI flags - WithCommand，仅用户明确指定的 flag
//
// 泛型参数 T 为配置结构体类型，必须使用 koanf tag 标记字段。
func Load[T any](defaultConfig T, opts ...Option) (*T, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if err := loadConfigFile(k, o.configPaths); err != nil {
		return nil, err
	}

	for _, src := range o.raw {
		if err := k.Load(rawbytes.Provider(src.data), parserForFormat(src.format)); err != nil {
			return nil, fmt.Errorf("failed to load %s config bytes: %w", src.format, err)
		}
	}

	fields := collectKoanfFields(defaultConfig)
	if o.envPrefix != "" {
		bindings := generateEnvBindings(o.envPrefix, collectKoanfKeys(defaultConfig))
		if err := loadEnvBindings(k, bindings, fields); err != nil {
			return nil, err
		}
	}

	if o.envBindKey != "" {
		if err := loadEnvBindings(k, k.StringMap(o.envBindKey), fields); err != nil {
			return nil, err
		}
	}
	if len(o.envBindings) > 0 {
		if err := loadEnvBindings(k, o.envBindings, fields); err != nil {
			return nil, err
		}
	}

	if o.cmd != nil {
		applyCLIFlags(o.cmd, k, reflect.TypeOf(defaultConfig), "")
	}

	var cfg T
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile 加载第一个存在的配置文件；文件存在但解析失败时返回错误。
func loadConfigFile(k *koanf.Koanf, paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), parserForPath(path)); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		slog.Debug("Loaded config from file", "path", path)
		return nil
	}
	slog.Debug("No config file found, using defaults")

	return nil
}

// loadEnvBindings 读取已设置的环境变量并通过 confmap 覆盖对应 key。
//
// 目标字段为切片时按逗号拆分，为 map 时按 "k=v,k2=v2" 解析。
func loadEnvBindings(k *koanf.Koanf, bindings map[string]string, fields map[string]reflect.Type) error {
	values := make(map[string]any)
	for env, key := range bindings {
		val, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		switch typ := fields[key]; {
		case typ != nil && typ.Kind() == reflect.Slice:
			values[key] = splitList(val)
		case typ != nil && typ.Kind() == reflect.Map:
			values[key] = splitPairs(val)
		default:
			values[key] = val
		}
	}
	if len(values) == 0 {
		return nil
	}
	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return fmt.Errorf("failed to load env bindings: %w", err)
	}

	return nil
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func splitPairs(val string) map[string]any {
	out := make(map[string]any)
	for _, pair := range splitList(val) {
		k, v, _ := strings.Cut(pair, "=")
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return out
}

// collectKoanfKeys 递归收集结构体中全部叶子字段的完整 koanf key。
func collectKoanfKeys(cfg any) []string {
	fields := collectKoanfFields(cfg)
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

// collectKoanfFields 返回叶子字段的 koanf key → 字段类型。
func collectKoanfFields(cfg any) map[string]reflect.Type {
	fields := make(map[string]reflect.Type)
	collectFieldsRecursive(reflect.TypeOf(cfg), "", fields)

	return fields
}

func collectFieldsRecursive(typ reflect.Type, prefix string, fields map[string]reflect.Type) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	for i := range typ.NumField() {
		field := typ.Field(i)
		key := field.Tag.Get("koanf")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		if isNestedStruct(field.Type) {
			collectFieldsRecursive(field.Type, key, fields)
			continue
		}
		fields[key] = field.Type
	}
}

// generateEnvBindings 生成 "前缀+大写key" → koanf key 的绑定表。
func generateEnvBindings(prefix string, koanfKeys []string) map[string]string {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	bindings := make(map[string]string, len(koanfKeys))
	for _, key := range koanfKeys {
		bindings[prefix+strings.ToUpper(replacer.Replace(key))] = key
	}

	return bindings
}

func isNestedStruct(typ reflect.Type) bool {
	return typ.Kind() == reflect.Struct &&
		typ != reflect.TypeFor[time.Duration]() &&
		typ != reflect.TypeFor[time.Time]()
}

// applyCLIFlags 通过反射将用户明确指定的 CLI flags 应用到 koanf 实例。
//
// koanf key 转为 kebab-case 作为 flag 名称：
//   - server.url → --server-url
//   - os_variant → --os-variant
func applyCLIFlags(cmd *cli.Command, k *koanf.Koanf, typ reflect.Type, prefix string) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	for i := range typ.NumField() {
		field := typ.Field(i)
		koanfKey := field.Tag.Get("koanf")
		if koanfKey == "" {
			continue
		}

		fullKey := koanfKey
		if prefix != "" {
			fullKey = prefix + "." + koanfKey
		}

		if isNestedStruct(field.Type) {
			applyCLIFlags(cmd, k, field.Type, fullKey)
			continue
		}

		flag := strings.NewReplacer(".", "-", "_", "-").Replace(fullKey)
		if !cmd.IsSet(flag) {
			continue
		}
		setCLIFlagValue(cmd, k, fullKey, flag, field.Type)
	}
}

// setCLIFlagValue 根据字段类型从 CLI 获取值并设置到 koanf
func setCLIFlagValue(cmd *cli.Command, k *koanf.Koanf, koanfKey, flag string, fieldType reflect.Type) {
	if fieldType == reflect.TypeFor[time.Duration]() {
		_ = k.Set(koanfKey, cmd.Duration(flag))
		return
	}

	switch fieldType.Kind() {
	case reflect.String:
		_ = k.Set(koanfKey, cmd.String(flag))
	case reflect.Bool:
		_ = k.Set(koanfKey, cmd.Bool(flag))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		_ = k.Set(koanfKey, cmd.Int(flag))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		_ = k.Set(koanfKey, cmd.Uint(flag))
	case reflect.Float32, reflect.Float64:
		_ = k.Set(koanfKey, cmd.Float64(flag))
	case reflect.Slice:
		switch fieldType.Elem().Kind() {
		case reflect.String:
			_ = k.Set(koanfKey, cmd.StringSlice(flag))
		case reflect.Int:
			_ = k.Set(koanfKey, cmd.IntSlice(flag))
		}
	case reflect.Map:
		if fieldType.Key().Kind() == reflect.String && fieldType.Elem().Kind() == reflect.String {
			_ = k.Set(koanfKey, cmd.StringMap(flag))
		}
	}
}
