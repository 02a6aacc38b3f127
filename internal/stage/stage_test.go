package stage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boxes "github.com/lwmacct/251016-go-vagrant-boxes"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/params"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/plan"
	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
)

func testRegistry(t *testing.T, entries ...plan.Entry) *plan.Registry {
	t.Helper()
	r, err := plan.NewRegistry(plan.Family{Name: "box", BaseDir: "box", Entries: entries})
	require.NoError(t, err)

	return r
}

func defaultVars(t *testing.T) tmpl.Vars {
	t.Helper()
	p, err := params.Build(params.Options{})
	require.NoError(t, err)

	return p.Vars()
}

func TestStage_Builtin(t *testing.T) {
	root := t.TempDir()
	s := New(plan.Builtin(), boxes.Templates(), WithRoot(root))

	res, err := s.Stage("win-10-pro-x64", defaultVars(t))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, root, filepath.Dir(res.Dir))
	assert.True(t, strings.HasPrefix(filepath.Base(res.Dir), "vb"))
	assert.Equal(t, filepath.Join(res.Dir, "packer.json"), res.EntryPoint)
	assert.Equal(t, []string{
		filepath.Join(res.Dir, "packer.json"),
		filepath.Join(res.Dir, "answer_files", "Autounattend.xml"),
	}, res.Files)

	data, err := os.ReadFile(res.EntryPoint)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	answer, err := os.ReadFile(filepath.Join(res.Dir, "answer_files", "Autounattend.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(answer), "<Value>Windows 10 Pro</Value>")

	_, err = os.Stat(filepath.Join(res.Dir, "packer.json.tmpl"))
	assert.True(t, os.IsNotExist(err), "suffix is stripped")
}

func TestStage_UniqueDirectories(t *testing.T) {
	root := t.TempDir()
	s := New(plan.Builtin(), boxes.Templates(), WithRoot(root))

	first, err := s.Stage("win-10-pro-x64", defaultVars(t))
	require.NoError(t, err)
	second, err := s.Stage("win-10-pro-x64", defaultVars(t))
	require.NoError(t, err)

	assert.NotEqual(t, first.Dir, second.Dir)
}

func TestStage_UnknownFamily(t *testing.T) {
	root := t.TempDir()
	s := New(plan.Builtin(), boxes.Templates(), WithRoot(root))

	res, err := s.Stage("win-11", defaultVars(t))
	assert.Nil(t, res)

	var unk *plan.UnknownFamilyError
	require.ErrorAs(t, err, &unk)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "no staging directory is created")
}

func TestStage_StagingCreateError(t *testing.T) {
	s := New(plan.Builtin(), boxes.Templates(), WithRoot(filepath.Join(t.TempDir(), "missing")))

	res, err := s.Stage("win-10-pro-x64", defaultVars(t))
	assert.Nil(t, res)

	var sce *StagingCreateError
	require.ErrorAs(t, err, &sce)
}

func TestStage_TemplateNotFound(t *testing.T) {
	r := testRegistry(t,
		plan.Entry{Path: "packer.json", Profile: tmpl.Alternate, EntryPoint: true},
		plan.Entry{Path: "missing.cfg", Profile: tmpl.Default},
	)
	src := fstest.MapFS{"box/packer.json.tmpl": {Data: []byte(`{"a": "@@ x @@"}`)}}

	res, err := New(r, src, WithRoot(t.TempDir())).Stage("box", tmpl.Vars{"x": "1"})
	require.NotNil(t, res, "result is returned once the directory exists")

	var nf *TemplateNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "box/missing.cfg.tmpl", nf.Path)
	assert.Equal(t, []string{filepath.Join(res.Dir, "packer.json")}, res.Files, "earlier files stay in place")
}

func TestStage_TemplateWriteError(t *testing.T) {
	r := testRegistry(t,
		plan.Entry{Path: "a", Profile: tmpl.Default},
		plan.Entry{Path: "a/b", Profile: tmpl.Default, EntryPoint: true},
	)
	src := fstest.MapFS{
		"box/a.tmpl":   {Data: []byte("file")},
		"box/a/b.tmpl": {Data: []byte("nested")},
	}

	res, err := New(r, src, WithRoot(t.TempDir())).Stage("box", nil)
	require.NotNil(t, res)

	var we *TemplateWriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, filepath.Join(res.Dir, "a", "b"), we.Path)
	assert.Equal(t, []string{filepath.Join(res.Dir, "a")}, res.Files)
}

func TestStage_Prefix(t *testing.T) {
	root := t.TempDir()
	res, err := New(plan.Builtin(), boxes.Templates(), WithRoot(root), WithPrefix("win10-")).Stage("win-10-pro-x64", defaultVars(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(res.Dir), "win10-"))
}

func TestStage_UndefinedVariable(t *testing.T) {
	r := testRegistry(t,
		plan.Entry{Path: "a.txt", Profile: tmpl.Default},
		plan.Entry{Path: "sub/b.txt", Profile: tmpl.Default, EntryPoint: true},
	)
	src := fstest.MapFS{
		"box/a.txt.tmpl":     {Data: []byte("{{ x }}")},
		"box/sub/b.txt.tmpl": {Data: []byte("{{ nope }}")},
	}

	res, err := New(r, src, WithRoot(t.TempDir())).Stage("box", tmpl.Vars{"x": "1"})
	require.NotNil(t, res)
	assert.True(t, errors.Is(err, tmpl.ErrUndefinedVariable))

	var undef *tmpl.UndefinedVariableError
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, "nope", undef.Name)

	_, statErr := os.Stat(filepath.Join(res.Dir, "sub", "b.txt"))
	assert.True(t, os.IsNotExist(statErr), "failed file is not written")
	assert.Empty(t, res.EntryPoint)
}

func TestStage_Validation(t *testing.T) {
	r := testRegistry(t, plan.Entry{Path: "packer.json", Profile: tmpl.Alternate, EntryPoint: true})
	src := fstest.MapFS{"box/packer.json.tmpl": {Data: []byte(`{"a": @@ x @@}`)}}

	t.Run("invalid json rejected", func(t *testing.T) {
		res, err := New(r, src, WithRoot(t.TempDir())).Stage("box", tmpl.Vars{"x": "not json"})
		require.NotNil(t, res)

		var inv *InvalidOutputError
		require.ErrorAs(t, err, &inv)
		assert.Equal(t, "JSON", inv.Format)
	})

	t.Run("validation disabled", func(t *testing.T) {
		res, err := New(r, src, WithRoot(t.TempDir()), WithValidation(false)).Stage("box", tmpl.Vars{"x": "not json"})
		require.NoError(t, err)
		assert.FileExists(t, res.EntryPoint)
	})

	t.Run("custom validator", func(t *testing.T) {
		r := testRegistry(t, plan.Entry{Path: "x.ini", Profile: tmpl.Default, EntryPoint: true})
		src := fstest.MapFS{"box/x.ini.tmpl": {Data: []byte("key")}}
		reject := func(string, []byte) error { return errors.New("no section") }

		_, err := New(r, src, WithRoot(t.TempDir()), WithValidator(".ini", "INI", reject)).Stage("box", nil)
		var inv *InvalidOutputError
		require.ErrorAs(t, err, &inv)
		assert.Equal(t, "INI", inv.Format)
	})
}

func TestStage_Include(t *testing.T) {
	r := testRegistry(t,
		plan.Entry{Path: "part/header.txt", Profile: tmpl.Default},
		plan.Entry{Path: "main.txt", Profile: tmpl.Default, EntryPoint: true},
	)
	src := fstest.MapFS{
		"box/part/header.txt.tmpl": {Data: []byte("header {{ x }}")},
		"box/main.txt.tmpl":        {Data: []byte(`[{% include "part/header.txt" %}]`)},
	}

	res, err := New(r, src, WithRoot(t.TempDir())).Stage("box", tmpl.Vars{"x": "1"})
	require.NoError(t, err)

	data, err := os.ReadFile(res.EntryPoint)
	require.NoError(t, err)
	assert.Equal(t, "[header 1]", string(data))
}

func TestStagedIncluder_Escape(t *testing.T) {
	dir := t.TempDir()
	include := stagedIncluder(dir)

	for _, name := range []string{"../secret", "/etc/passwd", "a/../../b"} {
		_, err := include(name)
		assert.ErrorIs(t, err, ErrEscape, name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		data  string
		valid bool
	}{
		{name: "json", file: "a.json", data: `{"a": [1, 2]}`, valid: true},
		{name: "json trailing", file: "a.json", data: `{} {}`},
		{name: "json broken", file: "a.json", data: `{"a": }`},
		{name: "xml", file: "a.xml", data: `<?xml version="1.0"?><a><b/></a>`, valid: true},
		{name: "xml mismatched", file: "a.xml", data: `<a></b>`},
		{name: "hcl", file: "win.pkr.hcl", data: "source \"qemu\" \"win\" {\n  disk_size = 61440\n}\n", valid: true},
		{name: "hcl broken", file: "win.pkr.hcl", data: "source \"qemu\" {\n"},
		{name: "yaml", file: "a.yaml", data: "a: 1\n---\nb: [x]\n", valid: true},
		{name: "yaml broken", file: "a.yml", data: "a: [1\n"},
		{name: "toml", file: "a.toml", data: "[a]\nb = 1\n", valid: true},
		{name: "toml broken", file: "a.toml", data: "[a\n"},
		{name: "unknown extension", file: "a.cfg", data: "{{{", valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.file, []byte(tt.data))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var inv *InvalidOutputError
			assert.ErrorAs(t, err, &inv)
		})
	}
}

func TestCleanup(t *testing.T) {
	root := t.TempDir()
	res, err := New(plan.Builtin(), boxes.Templates(), WithRoot(root)).Stage("win-10-pro-x64", defaultVars(t))
	require.NoError(t, err)

	Cleanup(res.Dir)
	assert.NoDirExists(t, res.Dir)

	assert.NotPanics(t, func() {
		Cleanup(res.Dir)
		Cleanup("")
	})
}
