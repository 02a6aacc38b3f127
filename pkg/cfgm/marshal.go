package cfgm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "go.yaml.in/yaml/v3"
)

// Marshal 按格式序列化配置结构体，format 取值 yaml / json / toml。
func Marshal[T any](cfg T, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml", "":
		return MarshalYAML(cfg), nil
	case "json":
		return MarshalJSON(cfg), nil
	case "toml":
		k := koanf.New(".")
		if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
			return nil, err
		}
		return k.Marshal(TOMLParser())
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
}

// ExampleYAML 将配置结构体序列化为带注释的 YAML。
//
// 通过 desc tag 生成注释，用于生成 config.example.yaml。
func ExampleYAML[T any](cfg T) []byte {
	node := structToNode(reflect.ValueOf(cfg), reflect.TypeOf(cfg))
	node.HeadComment = "配置示例文件, 复制为 config.yaml 或 ~/.config/<app>/config.yaml 后按需修改"

	var buf bytes.Buffer
	enc := yamlv3.NewEncoder(&buf)
	enc.SetIndent(2)
	_ = enc.Encode(node)
	_ = enc.Close()

	return buf.Bytes()
}

// MarshalYAML 使用 koanf 将配置序列化为 YAML（无注释）。
func MarshalYAML[T any](cfg T) []byte {
	k := koanf.New(".")
	_ = k.Load(structs.Provider(cfg, "koanf"), nil)
	data, _ := k.Marshal(yaml.Parser())

	return data
}

// MarshalJSON 将配置序列化为缩进 JSON。
func MarshalJSON[T any](cfg T) []byte {
	k := koanf.New(".")
	_ = k.Load(structs.Provider(cfg, "koanf"), nil)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	_ = enc.Encode(k.Raw()) //nolint:errchkjson // koanf raw map is plain data

	return buf.Bytes()
}

func structToNode(val reflect.Value, typ reflect.Type) *yamlv3.Node {
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return &yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!null"}
		}
		val = val.Elem()
		typ = typ.Elem()
	}

	node := &yamlv3.Node{Kind: yamlv3.MappingNode}
	for i := range typ.NumField() {
		field := typ.Field(i)
		key := field.Tag.Get("koanf")
		if key == "" {
			continue
		}
		comment := field.Tag.Get("desc")

		keyNode := &yamlv3.Node{Kind: yamlv3.ScalarNode, Value: key}
		var valNode *yamlv3.Node
		switch {
		case isNestedStruct(field.Type):
			valNode = structToNode(val.Field(i), field.Type)
			keyNode.HeadComment = "\n" + comment
		case field.Type.Kind() == reflect.Slice:
			valNode = valueToNode(val.Field(i))
			keyNode.HeadComment = "\n" + comment
		default:
			valNode = valueToNode(val.Field(i))
			// 多行注释放在 key 上方，单行注释放在行尾
			if strings.Contains(comment, "\n") {
				keyNode.HeadComment = "\n" + comment
			} else {
				valNode.LineComment = comment
			}
		}

		node.Content = append(node.Content, keyNode, valNode)
	}

	return node
}

func valueToNode(val reflect.Value) *yamlv3.Node {
	scalar := func(s string) *yamlv3.Node { return &yamlv3.Node{Kind: yamlv3.ScalarNode, Value: s} }

	switch v := val.Interface().(type) {
	case time.Duration:
		return scalar(v.String())
	case time.Time:
		return scalar(v.Format(time.RFC3339))
	}

	switch val.Kind() {
	case reflect.String:
		n := scalar(val.String())
		n.Style = yamlv3.DoubleQuotedStyle
		return n
	case reflect.Bool:
		return scalar(strconv.FormatBool(val.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return scalar(strconv.FormatInt(val.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return scalar(strconv.FormatUint(val.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return scalar(strconv.FormatFloat(val.Float(), 'g', -1, 64))
	case reflect.Slice:
		node := &yamlv3.Node{Kind: yamlv3.SequenceNode}
		if val.Len() == 0 {
			node.Style = yamlv3.FlowStyle
		}
		for j := range val.Len() {
			elem := valueToNode(val.Index(j))
			elem.Style = 0
			node.Content = append(node.Content, elem)
		}
		return node
	case reflect.Map:
		node := &yamlv3.Node{Kind: yamlv3.MappingNode}
		if val.Len() == 0 {
			node.Style = yamlv3.FlowStyle
		}
		keys := val.MapKeys()
		sort.Slice(keys, func(a, b int) bool {
			return fmt.Sprint(keys[a].Interface()) < fmt.Sprint(keys[b].Interface())
		})
		for _, k := range keys {
			node.Content = append(node.Content, scalar(fmt.Sprint(k.Interface())), valueToNode(val.MapIndex(k)))
		}
		return node
	default:
		return scalar(fmt.Sprint(val.Interface()))
	}
}
