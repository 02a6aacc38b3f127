package boxes_test

import (
	"encoding/json"
	"io/fs"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boxes "github.com/lwmacct/251016-go-vagrant-boxes"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/params"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/plan"
	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
)

func renderEntry(t *testing.T, path string, o params.Options) string {
	t.Helper()

	family, err := plan.Builtin().Lookup("win-10-pro-x64")
	require.NoError(t, err)

	var entry plan.Entry
	for _, e := range family.Entries {
		if e.Path == path {
			entry = e
		}
	}
	require.NotEmpty(t, entry.Path, "entry %s", path)

	src, err := fs.ReadFile(boxes.Templates(), family.SourcePath(entry))
	require.NoError(t, err)

	p, err := params.Build(o)
	require.NoError(t, err)

	out, err := tmpl.Render(path, string(src), entry.Profile, p.Vars())
	require.NoError(t, err)

	return out
}

func TestAnswerFile_Default(t *testing.T) {
	out := renderEntry(t, "answer_files/Autounattend.xml", params.Options{})

	assert.Contains(t, out, "<UILanguage>en-US</UILanguage>")
	assert.NotContains(t, out, "<DriverPaths>")
	assert.NotContains(t, out, "WITHOUT WINDOWS UPDATES")
	assert.Contains(t, out, "WITH WINDOWS UPDATES")
	assert.Contains(t, out, "<Value>Windows 10 Pro</Value>")
	assert.Contains(t, out, "Pacific Standard Time")

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(out), "rendered answer file is well-formed XML")
}

func TestAnswerFile_Custom(t *testing.T) {
	out := renderEntry(t, "answer_files/Autounattend.xml", params.Options{
		Variant:  "home",
		Locale:   "fr-FR",
		Timezone: "Romance Standard Time",
		NoUpdate: true,
		Libvirt:  true,
	})

	assert.Contains(t, out, "<UILanguage>fr-FR</UILanguage>")
	assert.Contains(t, out, "<DriverPaths>")
	assert.Contains(t, out, `<Path>E:\viostor\w10\amd64</Path>`)
	assert.Contains(t, out, "WITHOUT WINDOWS UPDATES")
	assert.NotContains(t, out, "WITH WINDOWS UPDATES")
	assert.Contains(t, out, "<Value>Windows 10 Home</Value>")
	assert.Contains(t, out, "Romance Standard Time")

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(out))
	paths := doc.FindElements("//DriverPaths/PathAndCredentials")
	assert.Len(t, paths, 5)
}

func TestPackerJSON(t *testing.T) {
	tests := []struct {
		name  string
		opts  params.Options
		types []string
	}{
		{name: "defaults", opts: params.Options{}, types: []string{"virtualbox-iso", "qemu"}},
		{name: "single builder", opts: params.Options{Builders: []string{"qemu"}, Libvirt: true}, types: []string{"qemu"}},
		{name: "unknown builder", opts: params.Options{Builders: []string{"hyperv-iso"}, NoUpdate: true}, types: []string{"hyperv-iso"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderEntry(t, "packer.json", tt.opts)

			var doc struct {
				Builders []struct {
					Type        string   `json:"type"`
					FloppyFiles []string `json:"floppy_files"`
				} `json:"builders"`
				Raw []string `json:"_builders"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &doc), out)

			var types []string
			for _, b := range doc.Builders {
				types = append(types, b.Type)
				assert.Contains(t, b.FloppyFiles, "{{template_dir}}/answer_files/Autounattend.xml")
			}
			assert.Equal(t, tt.types, types)
			assert.Equal(t, tt.types, doc.Raw)
			assert.Contains(t, out, "{{user `source_dir`}}", "packer's own template syntax passes through")
		})
	}
}
