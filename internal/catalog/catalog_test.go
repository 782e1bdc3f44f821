package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/relay/internal/relay"
)

const validModule = `
	const instance = {
		async search() { return { results: [] } },
		async info() {},
		async media() { return [] },
		async sources() { return [] },
		async streams() { return { streams: [] } },
		async pages() { return [] },
	}
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha.js", validModule)
	writeFile(t, root, "anime/beta.js", validModule)
	writeFile(t, root, "anime/deep/gamma.js", validModule)
	writeFile(t, root, "README.md", "not a module")
	writeFile(t, root, "manga/notes.txt", "nope")

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"default pattern", "", []string{"alpha", "anime/beta", "anime/deep/gamma"}},
		{"top level only", "*.js", []string{"alpha"}},
		{"subtree", "anime/**/*.js", []string{"anime/beta", "anime/deep/gamma"}},
		{"no matches", "**/*.ts", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Scan(context.Background(), root, tt.pattern)
			require.NoError(t, err)

			var names []string
			for _, e := range entries {
				names = append(names, e.Name)
				assert.FileExists(t, e.Path)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestScanErrors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.js")
	require.NoError(t, os.WriteFile(file, []byte(""), 0o644))

	_, err := Scan(context.Background(), file, "")
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = Scan(context.Background(), filepath.Join(root, "missing"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Scan(context.Background(), root, "[")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Scan(ctx, root, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSkipsBrokenModules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.js", validModule)
	writeFile(t, root, "b.js", "const instance = {")
	writeFile(t, root, "c.js", validModule)
	writeFile(t, root, "d.js", "const instance = {}")

	rt := relay.NewRuntime(relay.DefaultConfig(), nil)
	defer rt.Close()

	entries, err := Scan(context.Background(), root, "")
	require.NoError(t, err)

	report := Load(context.Background(), rt, entries, WithParallelism(2))

	require.Len(t, report.Loaded, 2)
	assert.Equal(t, "a", report.Loaded[0].Name())
	assert.Equal(t, "c", report.Loaded[1].Name())
	assert.Equal(t, 2, rt.Len())

	require.Len(t, report.Failed, 2)
	assert.Equal(t, "b", report.Failed[0].Entry.Name)
	assert.ErrorIs(t, report.Failed[0].Err, relay.ErrCompileFailed)
	assert.Equal(t, "d", report.Failed[1].Entry.Name)
	assert.ErrorIs(t, report.Failed[1].Err, relay.ErrMissingEntryPoint)
}

func TestLoadReportsUnreadableFiles(t *testing.T) {
	rt := relay.NewRuntime(relay.DefaultConfig(), nil)
	defer rt.Close()

	report := Load(context.Background(), rt, []Entry{{Name: "ghost", Path: filepath.Join(t.TempDir(), "ghost.js")}})
	assert.Empty(t, report.Loaded)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, os.ErrNotExist)
}
