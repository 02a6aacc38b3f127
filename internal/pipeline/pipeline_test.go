package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boxes "github.com/lwmacct/251016-go-vagrant-boxes"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/packer"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/params"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/plan"
	"github.com/lwmacct/251016-go-vagrant-boxes/internal/stage"
	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/tmpl"
)

type call struct {
	entryPoint string
	sourceDir  string
	existed    bool
}

type fakeInvoker struct {
	calls []call
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, entryPoint, sourceDir string) error {
	_, statErr := os.Stat(entryPoint)
	f.calls = append(f.calls, call{entryPoint: entryPoint, sourceDir: sourceDir, existed: statErr == nil})

	return f.err
}

func baseOptions(root string, inv packer.Invoker) Options {
	return Options{
		Family:    "win-10-pro-x64",
		Registry:  plan.Builtin(),
		Source:    boxes.Templates(),
		Stage:     []stage.Option{stage.WithRoot(root)},
		Build:     true,
		Clean:     true,
		SourceDir: "/src",
		Invoker:   inv,
	}
}

func stagingDirs(t *testing.T, root string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(root, "vb*"))
	require.NoError(t, err)

	return matches
}

func TestRun_Success(t *testing.T) {
	root := t.TempDir()
	inv := &fakeInvoker{}

	require.NoError(t, Run(context.Background(), baseOptions(root, inv)))

	require.Len(t, inv.calls, 1)
	c := inv.calls[0]
	assert.Equal(t, "packer.json", filepath.Base(c.entryPoint))
	assert.Equal(t, root, filepath.Dir(filepath.Dir(c.entryPoint)))
	assert.Equal(t, "/src", c.sourceDir)
	assert.True(t, c.existed, "entry point exists while packer runs")
	assert.Empty(t, stagingDirs(t, root), "staging directory removed")
}

func TestRun_BuildFailedStillCleansUp(t *testing.T) {
	root := t.TempDir()
	inv := &fakeInvoker{err: &packer.BuildFailedError{Status: 1}}

	err := Run(context.Background(), baseOptions(root, inv))

	var bf *packer.BuildFailedError
	require.ErrorAs(t, err, &bf)
	assert.Equal(t, 1, bf.Status)
	assert.Empty(t, stagingDirs(t, root))
}

func TestRun_NoClean(t *testing.T) {
	root := t.TempDir()
	o := baseOptions(root, &fakeInvoker{err: &packer.BuildFailedError{Status: 2}})
	o.Clean = false

	require.Error(t, Run(context.Background(), o))
	dirs := stagingDirs(t, root)
	require.Len(t, dirs, 1)

	family, err := plan.Builtin().Lookup("win-10-pro-x64")
	require.NoError(t, err)
	var want []string
	for _, e := range family.Entries {
		want = append(want, e.Path)
	}

	var got []string
	err = filepath.WalkDir(dirs[0], func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dirs[0], p)
		if err != nil {
			return err
		}
		got = append(got, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got, "staging directory holds exactly the planned files")
}

func TestRun_NoBuild(t *testing.T) {
	root := t.TempDir()
	inv := &fakeInvoker{}
	o := baseOptions(root, inv)
	o.Build = false

	require.NoError(t, Run(context.Background(), o))
	assert.Empty(t, inv.calls)
	assert.Empty(t, stagingDirs(t, root))
}

func TestRun_UnknownVariantBeforeStaging(t *testing.T) {
	root := t.TempDir()
	inv := &fakeInvoker{}
	o := baseOptions(root, inv)
	o.Params = params.Options{Variant: "enterprise"}

	err := Run(context.Background(), o)

	var uv *params.UnknownVariantError
	require.ErrorAs(t, err, &uv)
	assert.Empty(t, inv.calls)
	assert.Empty(t, stagingDirs(t, root), "no staging directory is created")
}

func TestRun_RenderFailureCleansUp(t *testing.T) {
	root := t.TempDir()
	r, err := plan.NewRegistry(plan.Family{
		Name:    "broken",
		BaseDir: "broken",
		Entries: []plan.Entry{{Path: "packer.json", Profile: tmpl.Alternate, EntryPoint: true}},
	})
	require.NoError(t, err)

	inv := &fakeInvoker{}
	o := baseOptions(root, inv)
	o.Family = "broken"
	o.Registry = r
	o.Source = fstest.MapFS{"broken/packer.json.tmpl": {Data: []byte(`{"x": "@@ missing @@"}`)}}

	err = Run(context.Background(), o)

	var undef *tmpl.UndefinedVariableError
	require.ErrorAs(t, err, &undef)
	assert.Empty(t, inv.calls, "packer is not invoked")
	assert.Empty(t, stagingDirs(t, root))
}

func TestRun_UnknownFamily(t *testing.T) {
	o := baseOptions(t.TempDir(), &fakeInvoker{})
	o.Family = "win-11"

	var unk *plan.UnknownFamilyError
	require.ErrorAs(t, Run(context.Background(), o), &unk)
}

func TestRun_MissingInvoker(t *testing.T) {
	o := baseOptions(t.TempDir(), nil)
	o.Invoker = nil

	assert.Error(t, Run(context.Background(), o))
}
