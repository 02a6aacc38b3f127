package plan

import (
	"fmt"
	"os"

	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
	"go.yaml.in/yaml/v3"
)

type fileDoc struct {
	Families []familyDoc `yaml:"families"`
}

type familyDoc struct {
	Name    string     `yaml:"name"`
	BaseDir string     `yaml:"base_dir"`
	Suffix  string     `yaml:"suffix"`
	Entries []entryDoc `yaml:"entries"`
}

type entryDoc struct {
	Path       string `yaml:"path"`
	Profile    string `yaml:"profile"`
	EntryPoint bool   `yaml:"entry_point"`
}

// Parse 解析 YAML 格式的模板族定义。
//
//	families:
//	  - name: my-box
//	    base_dir: my-box
//	    entries:
//	      - path: packer.json
//	        profile: alternate
//	        entry_point: true
//
// base_dir 缺省为 name，profile 缺省为 default。
func Parse(data []byte) ([]Family, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse families: %w", err)
	}

	families := make([]Family, 0, len(doc.Families))
	for _, fd := range doc.Families {
		f := Family{Name: fd.Name, BaseDir: fd.BaseDir, Suffix: fd.Suffix}
		if f.BaseDir == "" {
			f.BaseDir = f.Name
		}
		for _, ed := range fd.Entries {
			name := ed.Profile
			if name == "" {
				name = tmpl.Default.Name
			}
			p, err := tmpl.ProfileByName(name)
			if err != nil {
				return nil, &InvalidFamilyError{Family: fd.Name, Reason: fmt.Sprintf("entry %q: %v", ed.Path, err)}
			}
			f.Entries = append(f.Entries, Entry{Path: ed.Path, Profile: p, EntryPoint: ed.EntryPoint})
		}
		families = append(families, f)
	}

	return families, nil
}

// LoadFile 读取模板族定义文件并注册到 r。
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read families file: %w", err)
	}
	families, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, f := range families {
		if err := r.Register(f); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	return nil
}
