package cfgm

import (
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
)

// parserForPath 根据文件扩展名选择解析器，未知扩展名按 YAML 处理。
func parserForPath(path string) koanf.Parser {
	return parserForFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

func parserForFormat(format string) koanf.Parser {
	switch strings.ToLower(format) {
	case "json":
		return json.Parser()
	case "toml":
		return TOMLParser()
	default:
		return yaml.Parser()
	}
}

// TOML 基于 go-toml/v2 的 koanf 解析器
type TOML struct{}

// TOMLParser 返回 TOML 解析器
func TOMLParser() *TOML {
	return &TOML{}
}

// Unmarshal 将 TOML 文本解析为嵌套 map
func (p *TOML) Unmarshal(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}

	return out, nil
}

// Marshal 将嵌套 map 序列化为 TOML
func (p *TOML) Marshal(o map[string]any) ([]byte, error) {
	return toml.Marshal(o)
}
