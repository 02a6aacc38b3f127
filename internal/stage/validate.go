package stage

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/beevik/etree"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
)

// Validator 检查渲染结果的语法，name 仅用于诊断信息
type Validator func(name string, data []byte) error

type formatValidator struct {
	format string
	fn     Validator
}

var defaultValidators = map[string]formatValidator{
	".json": {"JSON", validateJSON},
	".xml":  {"XML", validateXML},
	".hcl":  {"HCL", validateHCL},
	".yaml": {"YAML", validateYAML},
	".yml":  {"YAML", validateYAML},
	".toml": {"TOML", validateTOML},
}

// Validate 按扩展名校验渲染结果，未知扩展名直接通过。
func Validate(name string, data []byte) error {
	return validateWith(defaultValidators, name, data)
}

func validateWith(validators map[string]formatValidator, name string, data []byte) error {
	v, ok := validators[strings.ToLower(path.Ext(name))]
	if !ok {
		return nil
	}
	if err := v.fn(name, data); err != nil {
		return &InvalidOutputError{Path: name, Format: v.format, Err: err}
	}

	return nil
}

func validateJSON(_ string, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON value")
	}

	return nil
}

func validateXML(_ string, data []byte) error {
	return etree.NewDocument().ReadFromBytes(data)
}

func validateHCL(name string, data []byte) error {
	_, diags := hclparse.NewParser().ParseHCL(data, name)
	if diags.HasErrors() {
		return diags
	}

	return nil
}

func validateYAML(_ string, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func validateTOML(_ string, data []byte) error {
	var v map[string]any

	return toml.Unmarshal(data, &v)
}
