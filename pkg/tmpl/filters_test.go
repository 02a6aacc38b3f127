package tmpl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
)

func TestFilter_fromjson(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "list iteration",
			template: `{% for p in '["E:\\\\viostor", "E:\\\\NetKVM"]' | fromjson %}[{{ p }}]{% endfor %}`,
			want:     `[E:\viostor][E:\NetKVM]`,
		},
		{
			name:     "object access",
			template: `{{ ('{"a": {"b": 2}}' | fromjson).a.b }}`,
			want:     "2",
		},
		{
			name:     "round trip through jsonify",
			template: `{{ '{"k": [1, 2]}' | fromjson | jsonify }}`,
			want:     "{\n  \"k\": [\n    1,\n    2\n  ]\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tmpl.Render(tt.name, tt.template, tmpl.Default, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_fromjsonInvalid(t *testing.T) {
	_, err := tmpl.Render("bad", `{{ "{oops" | fromjson }}`, tmpl.Default, nil)

	var fe *tmpl.FilterError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "fromjson", fe.Filter)
}

func TestFilter_Misc(t *testing.T) {
	vars := tmpl.Vars{
		"builders": []string{"virtualbox-iso", "qemu"},
		"empty":    "",
		"name":     "  Box <1> & 'two'  ",
		"m":        map[string]any{"b": 1, "a": "<x>"},
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "jsonify list", template: `{{ builders | jsonify }}`, want: "[\n  \"virtualbox-iso\",\n  \"qemu\"\n]"},
		{name: "tojson keeps html", template: `{{ m | tojson }}`, want: `{"a":"<x>","b":1}`},
		{name: "toyaml", template: `{{ builders | toyaml }}`, want: "- virtualbox-iso\n- qemu"},
		{name: "default on empty", template: `{{ empty | default("fallback") }}`, want: "fallback"},
		{name: "default on value", template: `{{ "v" | default("fallback") }}`, want: "v"},
		{name: "default on none", template: `{{ none | default(1) }}`, want: "1"},
		{name: "join", template: `{{ builders | join(",") }}`, want: "virtualbox-iso,qemu"},
		{name: "join default sep", template: `{{ [1, 2] | join }}`, want: "12"},
		{name: "length", template: `{{ builders | length }}`, want: "2"},
		{name: "upper lower trim", template: `{{ "Ab" | upper }}{{ "Ab" | lower }}{{ name | trim | length }}`, want: "ABab15"},
		{name: "xmlescape", template: `{{ name | trim | xmlescape }}`, want: "Box &lt;1&gt; &amp; &apos;two&apos;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tmpl.Render(tt.name, tt.template, tmpl.Default, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_defaultArgs(t *testing.T) {
	_, err := tmpl.Render("d", `{{ "" | default }}`, tmpl.Default, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong number of args")
}
