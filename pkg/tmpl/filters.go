package tmpl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	yamlv3 "go.yaml.in/yaml/v3"
)

// ═══════════════════════════════════════════════════════════════════════════
// 过滤器 (参考: Jinja 内置过滤器和 Sprig)
// ═══════════════════════════════════════════════════════════════════════════

// Filter 过滤器函数：value | name(args...)
type Filter func(value any, args ...any) (any, error)

// builtinFilters 内置过滤器映射表
var builtinFilters = map[string]Filter{
	"fromjson":  fromJSONFilter,
	"jsonify":   jsonifyFilter,
	"tojson":    toJSONFilter,
	"toyaml":    toYAMLFilter,
	"default":   defaultFilter,
	"lower":     stringFilter(strings.ToLower),
	"upper":     stringFilter(strings.ToUpper),
	"trim":      stringFilter(strings.TrimSpace),
	"xmlescape": stringFilter(xmlReplacer.Replace),
	"join":      joinFilter,
	"length":    lengthFilter,
}

// Filters 返回内置过滤器名称到实现的副本，可用于 [WithFilters] 的组合。
func Filters() map[string]Filter {
	out := make(map[string]Filter, len(builtinFilters))
	for k, v := range builtinFilters {
		out[k] = v
	}

	return out
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// fromJSONFilter 将 JSON 文本解析为值（对象为 map[string]any，数字为 float64）。
//
//   - {{ '["a", "b"]' | fromjson }}
func fromJSONFilter(value any, _ ...any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", value)
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}

	return out, nil
}

// jsonifyFilter 将值序列化为 2 空格缩进的 JSON 文本。
//
//   - {{ paths | jsonify }}
func jsonifyFilter(value any, _ ...any) (any, error) {
	return encodeJSON(value, "  ")
}

// toJSONFilter 将值序列化为紧凑 JSON 文本。
func toJSONFilter(value any, _ ...any) (any, error) {
	return encodeJSON(value, "")
}

// encodeJSON 不做 HTML 转义，末尾不带换行；对象键按字典序输出。
func encodeJSON(value any, indent string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(value); err != nil {
		return "", err
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// toYAMLFilter 将值序列化为 YAML 文本。
func toYAMLFilter(value any, _ ...any) (any, error) {
	var buf bytes.Buffer
	enc := yamlv3.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	_ = enc.Close()

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// defaultFilter 提供默认值：nil 或空字符串时返回参数。
//
// 与 Jinja 不同，未定义变量在到达过滤器之前就已报错。
//
//   - {{ value | default("fallback") }}
func defaultFilter(value any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, errors.New("wrong number of args: want 1")
	}
	if value == nil {
		return args[0], nil
	}
	if str, ok := value.(string); ok && str == "" {
		return args[0], nil
	}

	return value, nil
}

// joinFilter 以分隔符连接序列元素，分隔符缺省为空串。
//
//   - {{ builders | join(", ") }}
func joinFilter(value any, args ...any) (any, error) {
	sep := ""
	if len(args) > 0 {
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("separator must be a string, got %T", args[0])
		}
		sep = s
	}
	items, err := iterate(value)
	if err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		s, err := stringify(it)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}

	return strings.Join(parts, sep), nil
}

func lengthFilter(value any, _ ...any) (any, error) {
	return length(value)
}

// stringFilter 将 string → string 函数包装为过滤器，非字符串值先转换为文本。
func stringFilter(fn func(string) string) Filter {
	return func(value any, _ ...any) (any, error) {
		s, err := stringify(value)
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}
