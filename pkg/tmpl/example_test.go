package tmpl_test

import (
	"fmt"

	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
)

// Example_defaultProfile 演示 Default Profile 下的变量与条件块。
func Example_defaultProfile() {
	out, _ := tmpl.Render("unattend.xml",
		`<UILanguage>{{ locale }}</UILanguage>{% if not update %} WITHOUT UPDATES{% endif %}`,
		tmpl.Default,
		tmpl.Vars{"locale": "fr-FR", "update": false},
	)
	fmt.Println(out)

	// Output:
	// <UILanguage>fr-FR</UILanguage> WITHOUT UPDATES
}

// Example_alternateProfile 演示 Alternate Profile：packer 自身的 {{ }} 原样保留。
func Example_alternateProfile() {
	out, _ := tmpl.Render("packer.json",
		`{"only": @@ builders | tojson @@, "dir": "{{user `+"`source_dir`"+`}}"}`,
		tmpl.Alternate,
		tmpl.Vars{"builders": []string{"qemu"}},
	)
	fmt.Println(out)

	// Output:
	// {"only": ["qemu"], "dir": "{{user `source_dir`}}"}
}

// Example_strictUndefined 演示引用未定义变量时返回错误而不是空串。
func Example_strictUndefined() {
	_, err := tmpl.Render("strict.tmpl", `hello {{ nobody }}`, tmpl.Default, tmpl.Vars{})
	fmt.Println(err)

	// Output:
	// strict.tmpl:1: undefined variable "nobody"
}
